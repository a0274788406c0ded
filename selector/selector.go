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

package selector

import (
	"context"
	"net"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/rules"
)

// Resolver resolves a DNS name to an IP address. net.DefaultResolver
// satisfies this via LookupIP's shape; NewNetResolver adapts it.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

type netResolver struct {
	r *net.Resolver
}

// NewNetResolver wraps the standard library resolver.
func NewNetResolver() Resolver {
	return &netResolver{r: net.DefaultResolver}
}

func (n *netResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	ips, err := n.r.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, net.InvalidAddrError(host)
	}
	return ips[0], nil
}

// Decision is the outcome of Judge or Default: either Block, or an Allow
// carrying the chosen client proxy and effective remote location.
type Decision struct {
	Block  bool
	Client rules.ResolvedClient
	Remote address.NetLocation
}

// Selector is the per-listener (or per-override-scope) ClientProxySelector.
type Selector interface {
	// Judge walks the rule list in order and returns the first matching
	// rule's decision.
	Judge(ctx context.Context, target address.NetLocation) Decision
	// Default returns the decision for flows with no single target at
	// decision time (MultidirectionalUdpForward). It is the decision the
	// first Allow-any-or-block-all catch-all rule would produce, or Block
	// if no such rule exists.
	Default() Decision
}

type selector struct {
	rules    []rules.ResolvedRule
	resolver Resolver
}

// New builds a Selector over a resolved rule list. resolver may be nil, in
// which case DNS-name targets never match a non-wildcard mask.
func New(rl []rules.ResolvedRule, resolver Resolver) Selector {
	return &selector{rules: rl, resolver: resolver}
}

func (s *selector) Judge(ctx context.Context, target address.NetLocation) Decision {
	for _, r := range s.rules {
		if s.matchesAny(ctx, r, target) {
			return s.decide(r, target)
		}
	}

	return Decision{Block: true}
}

func (s *selector) matchesAny(ctx context.Context, r rules.ResolvedRule, target address.NetLocation) bool {
	resolved := target

	for _, m := range r.Masks {
		if m.Matches(resolved) {
			return true
		}
	}

	// A DNS-name target only needed resolving if some mask was concrete;
	// Matches() already returns false for those without a resolve, so try
	// once, lazily, and re-test.
	if target.IsIP() || s.resolver == nil {
		return false
	}

	ip, err := s.resolver.Resolve(ctx, target.Host)
	if err != nil {
		return false
	}

	resolved = target.WithIP(ip)
	for _, m := range r.Masks {
		if m.Matches(resolved) {
			return true
		}
	}

	return false
}

func (s *selector) decide(r rules.ResolvedRule, target address.NetLocation) Decision {
	if r.Action == rules.ActionBlock {
		return Decision{Block: true}
	}

	remote := target
	if r.OverrideAddress != nil {
		remote = *r.OverrideAddress
	}

	var client rules.ResolvedClient
	if len(r.ClientProxies) > 0 {
		client = r.ClientProxies[0]
	}

	return Decision{Client: client, Remote: remote}
}

// Default implements the MultidirectionalUdpForward contract: it evaluates
// the first rule whose masks include Any, exactly as a judge() call with a
// target that compares true against every concrete mask would not - known
// limitation preserved from the source (see SPEC_FULL.md §9).
func (s *selector) Default() Decision {
	for _, r := range s.rules {
		for _, m := range r.Masks {
			if m == address.Any {
				return s.decide(r, address.Unspecified)
			}
		}
	}

	return Decision{Block: true}
}
