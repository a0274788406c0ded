/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package handler

import (
	"context"
	"io"
	"net"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/selector"
)

// Kind discriminates the SetupResult variant a Handler produced.
type Kind uint8

const (
	// KindTcpForward is a single-target, stream-oriented forward.
	KindTcpForward Kind = iota
	// KindBidirectionalUdpForward is a single-target, framed UDP-over-stream forward.
	KindBidirectionalUdpForward
	// KindMultidirectionalUdpForward is a multi-target, framed UDP-over-stream forward.
	KindMultidirectionalUdpForward
)

// SetupResult is the outcome of a Handler's Setup call: a tagged variant
// over the three forward shapes a proxy protocol's handshake can produce.
type SetupResult struct {
	Kind Kind

	// RemoteLocation is set for KindTcpForward and KindBidirectionalUdpForward.
	RemoteLocation address.NetLocation

	// Stream is the peeled connection the supervisor bridges to the egress
	// dial. For wrapping protocols this is the inner plaintext/unwrapped
	// stream, not raw.
	Stream io.ReadWriteCloser

	// NeedInitialFlush marks a stream whose first write must be flushed
	// before any read is attempted (half-duplex handshakes).
	NeedInitialFlush bool

	// OverrideSelector, if non-nil, replaces the listener-scope selector for
	// the remainder of this connection (override_rules at this nesting level).
	OverrideSelector selector.Selector

	// ConnectionSuccessResponse, if non-nil, is written back to the client
	// before bridging begins (e.g. the SOCKS5/HTTP CONNECT success reply).
	ConnectionSuccessResponse []byte

	// InitialRemoteData, if non-nil, is data already read from the client
	// that must be the first bytes written to the upstream connection.
	InitialRemoteData []byte
}

// Handler is the polymorphic per-protocol server-side stream handshake.
type Handler interface {
	// Setup performs the protocol handshake over raw and returns the
	// resulting forward description. Callers are expected to enforce their
	// own handshake deadline on ctx.
	Setup(ctx context.Context, raw net.Conn) (SetupResult, error)
}

// Scope carries the rule stack in effect at a given nesting depth, so a
// leaf handler can capture the selector matching its position in the tree.
type Scope struct {
	Rules    []rules.ResolvedRule
	Resolver selector.Resolver
}

// Push returns a child scope with override rules in effect, or the same
// scope if override is empty. The resolver always carries through, since
// override_rules only replaces the rule list, not how hostnames resolve.
func (s Scope) Push(override []rules.ResolvedRule) Scope {
	if len(override) == 0 {
		return s
	}
	return Scope{Rules: override, Resolver: s.Resolver}
}

// Selector builds the selector.Selector this scope's rules resolve to, or
// nil when no override_rules are in effect at this nesting level - the
// caller's listener-scope selector then applies unchanged.
func (s Scope) Selector() selector.Selector {
	if len(s.Rules) == 0 {
		return nil
	}

	resolver := s.Resolver
	if resolver == nil {
		resolver = selector.NewNetResolver()
	}

	return selector.New(s.Rules, resolver)
}
