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
	"bytes"
	"context"
	"io"
	"net"

	"github.com/nabbar/golib/rules"
)

// codecHandler decodes the address header of the shadowsocks/snell/vless/
// vmess/trojan family. Full payload framing and encryption are out of scope;
// Setup only extracts enough to route the connection, mirroring the
// address-header step every member of this family performs before the
// encrypted data stream begins. It returns as soon as the header is read: the
// first data block is not read and InitialRemoteData is never set.
type codecHandler struct {
	proto *rules.ResolvedProtocol
	scope Scope
}

func (h *codecHandler) Setup(_ context.Context, raw net.Conn) (SetupResult, error) {
	switch h.proto.Type {
	case "shadowsocks":
		return h.setupShadowsocks(raw)
	case "trojan":
		return h.setupTrojan(raw)
	default:
		return h.setupAddressHeaderOnly(raw)
	}
}

// setupShadowsocks decodes a SOCKS5-shaped address header, as shadowsocks
// does, directly off the plaintext stream (the cipher handshake itself is
// out of scope).
func (h *codecHandler) setupShadowsocks(raw net.Conn) (SetupResult, error) {
	atyp := make([]byte, 1)
	if _, e := io.ReadFull(raw, atyp); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	target, err := readSocksAddress(raw, atyp[0])
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	return SetupResult{Kind: KindTcpForward, RemoteLocation: target, Stream: raw, OverrideSelector: h.scope.Selector()}, nil
}

// setupTrojan decodes the trojan header (56-byte hex password + CRLF +
// command + address + CRLF); a password mismatch falls back to treating the
// stream as shadowsocks, per the family's documented fallback behavior. The
// command byte distinguishes Connect (0x01) from UDP Associate (0x03), the
// latter multiplexing arbitrary per-packet destinations over the stream.
func (h *codecHandler) setupTrojan(raw net.Conn) (SetupResult, error) {
	hash := make([]byte, 56)
	if _, e := io.ReadFull(raw, hash); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	crlf := make([]byte, 2)
	if _, e := io.ReadFull(raw, crlf); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	if h.proto.Password != "" && string(hash) != h.proto.Password {
		if h.proto.Shadowsocks != nil {
			rest := io.MultiReader(bytes.NewReader(hash), bytes.NewReader(crlf), raw)
			return h.setupShadowsocksOver(rest, raw)
		}
		return SetupResult{}, ErrorParse.Errorf("trojan authentication failed")
	}

	cmd := make([]byte, 1)
	if _, e := io.ReadFull(raw, cmd); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	atyp := make([]byte, 1)
	if _, e := io.ReadFull(raw, atyp); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	target, err := readSocksAddress(raw, atyp[0])
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	if _, e := io.ReadFull(raw, crlf); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	kind := KindTcpForward
	if cmd[0] == 0x03 && h.proto.UDPEnabled {
		kind = KindMultidirectionalUdpForward
	}

	return SetupResult{Kind: kind, RemoteLocation: target, Stream: raw, OverrideSelector: h.scope.Selector()}, nil
}

func (h *codecHandler) setupShadowsocksOver(r io.Reader, raw net.Conn) (SetupResult, error) {
	atyp := make([]byte, 1)
	if _, e := io.ReadFull(r, atyp); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	target, err := readSocksAddress(r, atyp[0])
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	return SetupResult{Kind: KindTcpForward, RemoteLocation: target, Stream: raw, OverrideSelector: h.scope.Selector()}, nil
}

// setupAddressHeaderOnly handles snell/vless/vmess, which (for routing
// purposes) boil down to the same SOCKS5-shaped address header; UUID/version
// fields preceding it are skipped by field width, not validated, since
// their cryptographic verification is out of scope. vless and vmess each
// carry a command byte ahead of the address header (UDP relay in vless is
// single-target, whereas vmess's forwards to whatever destination the inner
// stream names per packet); snell has neither, so it never routes to UDP.
func (h *codecHandler) setupAddressHeaderOnly(raw net.Conn) (SetupResult, error) {
	kind := KindTcpForward

	switch h.proto.Type {
	case "vless":
		skip := make([]byte, 17) // version(1) + uuid(16)
		if _, e := io.ReadFull(raw, skip); e != nil {
			return SetupResult{}, ErrorParse.Error(e)
		}

		addonsLen := make([]byte, 1)
		if _, e := io.ReadFull(raw, addonsLen); e != nil {
			return SetupResult{}, ErrorParse.Error(e)
		}
		if addonsLen[0] > 0 {
			addons := make([]byte, addonsLen[0])
			if _, e := io.ReadFull(raw, addons); e != nil {
				return SetupResult{}, ErrorParse.Error(e)
			}
		}

		cmd := make([]byte, 1)
		if _, e := io.ReadFull(raw, cmd); e != nil {
			return SetupResult{}, ErrorParse.Error(e)
		}
		if cmd[0] == 0x02 && h.proto.UDPEnabled {
			kind = KindBidirectionalUdpForward
		}
	case "vmess":
		skip := make([]byte, 16) // auth id
		if _, e := io.ReadFull(raw, skip); e != nil {
			return SetupResult{}, ErrorParse.Error(e)
		}
		if !h.proto.ForceAEAD {
			legacy := make([]byte, 4)
			if _, e := io.ReadFull(raw, legacy); e != nil {
				return SetupResult{}, ErrorParse.Error(e)
			}
		}

		cmd := make([]byte, 1)
		if _, e := io.ReadFull(raw, cmd); e != nil {
			return SetupResult{}, ErrorParse.Error(e)
		}
		if cmd[0] == 0x02 && h.proto.UDPEnabled {
			kind = KindMultidirectionalUdpForward
		}
	}

	atyp := make([]byte, 1)
	if _, e := io.ReadFull(raw, atyp); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	target, err := readSocksAddress(raw, atyp[0])
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	return SetupResult{Kind: kind, RemoteLocation: target, Stream: raw, OverrideSelector: h.scope.Selector()}, nil
}
