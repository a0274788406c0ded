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

package rules

import (
	"runtime"
	"strings"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/config"
	liberr "github.com/nabbar/golib/errors"
)

// defaultClient is the built-in "direct" ClientConfig: unspecified bind,
// Direct protocol, TCP transport.
func defaultClient() ResolvedClient {
	return ResolvedClient{
		Config:    config.ClientConfig{Protocol: &config.ClientProtocol{Type: "direct"}},
		Address:   address.Unspecified,
		Transport: address.TransportTCP,
	}
}

type resolver struct {
	clientGroups map[string][]ResolvedClient
	ruleGroups   map[string][]ResolvedRule
}

// Resolve expands every group reference in doc into its inline form,
// validates transport/TLS coherence, and seeds empty rule lists with the
// built-in "allow any -> direct" default, per the rule resolver design.
func Resolve(doc *config.Document) ([]ResolvedServer, liberr.Error) {
	r := &resolver{
		clientGroups: map[string][]ResolvedClient{
			"direct": {defaultClient()},
		},
		ruleGroups: map[string][]ResolvedRule{},
	}
	r.ruleGroups["allow-all-direct"] = []ResolvedRule{{
		Masks:         []address.NetLocationMask{address.Any},
		Action:        ActionAllow,
		ClientProxies: r.clientGroups["direct"],
	}}
	r.ruleGroups["block-all"] = []ResolvedRule{{
		Masks:  []address.NetLocationMask{address.Any},
		Action: ActionBlock,
	}}

	for _, cg := range doc.ClientGroups {
		if _, dup := r.clientGroups[cg.Name]; dup {
			return nil, ErrorDuplicateGroup.Errorf(cg.Name)
		}

		var out []ResolvedClient
		for _, cc := range cg.Clients {
			rc, err := r.resolveClient(cc)
			if err != nil {
				return nil, err
			}
			out = append(out, rc)
		}
		r.clientGroups[cg.Name] = out
	}

	for _, rg := range doc.RuleGroups {
		if _, dup := r.ruleGroups[rg.Name]; dup {
			return nil, ErrorDuplicateGroup.Errorf(rg.Name)
		}

		var out []ResolvedRule
		for _, rc := range rg.Rules {
			res, err := r.resolveRule(rc)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		r.ruleGroups[rg.Name] = out
	}

	var servers []ResolvedServer
	for _, sc := range doc.Servers {
		rs, err := r.resolveServer(sc)
		if err != nil {
			return nil, err
		}
		servers = append(servers, rs)
	}

	return servers, nil
}

func (r *resolver) resolveClient(cc config.ClientConfig) (ResolvedClient, liberr.Error) {
	if cc.BindInterface != "" && runtime.GOOS != "linux" && runtime.GOOS != "android" {
		return ResolvedClient{}, ErrorIncoherentTransport.Errorf("bind_interface is only supported on Linux-family platforms")
	}

	loc := address.Unspecified
	if cc.Address != "" {
		l, err := address.ParseLocation(cc.Address, 0)
		if err != nil {
			return ResolvedClient{}, ErrorInvalidAddress.Error(err)
		}
		loc = l
	}

	transport := address.ParseTransport(cc.Transport)
	if err := checkTransportCoherence(transport, cc.TcpSettings != nil, cc.QuicSettings != nil, false); err != nil {
		return ResolvedClient{}, err
	}

	return ResolvedClient{Config: cc, Address: loc, Transport: transport}, nil
}

func (r *resolver) resolveRule(rc config.RuleConfig) (ResolvedRule, liberr.Error) {
	var masks []address.NetLocationMask
	for _, m := range rc.Masks {
		pm, err := address.ParseMask(m)
		if err != nil {
			return ResolvedRule{}, ErrorInvalidMask.Error(err)
		}
		masks = append(masks, pm)
	}

	action := ActionBlock
	if strings.EqualFold(rc.Action, "allow") {
		action = ActionAllow
	}

	rr := ResolvedRule{Masks: masks, Action: action}

	if rc.OverrideAddress != "" {
		loc, err := address.ParseLocation(rc.OverrideAddress, 0)
		if err != nil {
			return ResolvedRule{}, ErrorInvalidAddress.Error(err)
		}
		rr.OverrideAddress = &loc
	}

	if action == ActionAllow {
		clients, err := r.expandClients(rc.ClientProxies)
		if err != nil {
			return ResolvedRule{}, err
		}
		rr.ClientProxies = clients
	}

	return rr, nil
}

func (r *resolver) expandClients(sels []config.Selection) ([]ResolvedClient, liberr.Error) {
	var out []ResolvedClient

	for _, s := range sels {
		if s.Group != "" {
			g, ok := r.clientGroups[s.Group]
			if !ok {
				return nil, ErrorUnknownGroup.Errorf(s.Group)
			}
			out = append(out, g...)
			continue
		}

		rc, err := r.resolveClient(config.DecodeClient(s.Inline))
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}

	return out, nil
}

func (r *resolver) expandRules(sels []config.Selection) ([]ResolvedRule, liberr.Error) {
	var out []ResolvedRule

	for _, s := range sels {
		if s.Group != "" {
			g, ok := r.ruleGroups[s.Group]
			if !ok {
				return nil, ErrorUnknownGroup.Errorf(s.Group)
			}
			out = append(out, g...)
			continue
		}

		rr, err := r.resolveRule(config.DecodeRule(s.Inline))
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}

	return out, nil
}

func (r *resolver) resolveServer(sc config.ServerConfig) (ResolvedServer, liberr.Error) {
	var (
		bind address.BindLocation
		err  liberr.Error
	)

	if sc.Path != "" {
		bind = address.BindLocation{Path: sc.Path}
	} else {
		bl, e := address.ParseBind(sc.Bind, 0)
		if e != nil {
			return ResolvedServer{}, ErrorInvalidAddress.Error(e)
		}
		bind = bl
	}

	transport := address.ParseTransport(sc.Transport)
	if err = checkTransportCoherence(transport, sc.TcpSettings != nil, sc.QuicSettings != nil, bind.IsPath()); err != nil {
		return ResolvedServer{}, err
	}

	proto, err := r.resolveProtocol(sc.Protocol)
	if err != nil {
		return ResolvedServer{}, err
	}

	rulesList, err := r.expandRules(sc.Rules)
	if err != nil {
		return ResolvedServer{}, err
	}

	if len(rulesList) == 0 {
		rulesList = append([]ResolvedRule{}, r.ruleGroups["allow-all-direct"]...)
	}

	return ResolvedServer{
		Bind:         bind,
		Protocol:     proto,
		Transport:    transport,
		TcpSettings:  sc.TcpSettings,
		QuicSettings: sc.QuicSettings,
		Rules:        rulesList,
	}, nil
}

func (r *resolver) resolveProtocol(p *config.ServerProtocol) (*ResolvedProtocol, liberr.Error) {
	if p == nil {
		return nil, nil
	}

	rp := &ResolvedProtocol{
		Type:        p.Type,
		Username:    p.Username,
		Password:    p.Password,
		Cipher:      p.Cipher,
		UserID:      p.UserID,
		ForceAEAD:   p.ForceAEADOrDefault(),
		UDPEnabled:  p.UDPEnabledOrDefault(),
		Shadowsocks: p.Shadowsocks,
	}

	for _, t := range p.Targets {
		loc, err := address.ParseLocation(t, 0)
		if err != nil {
			return nil, ErrorInvalidAddress.Error(err)
		}
		rp.Targets = append(rp.Targets, loc)
	}

	if p.DefaultTarget != nil {
		t, err := r.resolveTLSTarget(p.DefaultTarget)
		if err != nil {
			return nil, err
		}
		rp.DefaultTarget = t
	}

	if len(p.SNITargets) > 0 {
		rp.SNITargets = make(map[string]*ResolvedTLSTarget, len(p.SNITargets))
		for host, t := range p.SNITargets {
			rt, err := r.resolveTLSTarget(t)
			if err != nil {
				return nil, err
			}
			rp.SNITargets[host] = rt
		}
	}

	for _, wr := range p.Routes {
		rwr, err := r.resolveWSRoute(wr)
		if err != nil {
			return nil, err
		}
		rp.Routes = append(rp.Routes, rwr)
	}

	return rp, nil
}

func (r *resolver) resolveTLSTarget(t *config.TLSTarget) (*ResolvedTLSTarget, liberr.Error) {
	if t == nil {
		return nil, nil
	}

	proto, err := r.resolveProtocol(t.Protocol)
	if err != nil {
		return nil, err
	}

	ov, err := r.expandRules(t.OverrideRules)
	if err != nil {
		return nil, err
	}

	return &ResolvedTLSTarget{
		Cert:          t.Cert,
		Key:           t.Key,
		ALPNProtocols: t.ALPNProtocols,
		Protocol:      proto,
		OverrideRules: ov,
	}, nil
}

func (r *resolver) resolveWSRoute(wr config.WebSocketRoute) (ResolvedWSRoute, liberr.Error) {
	proto, err := r.resolveProtocol(wr.Protocol)
	if err != nil {
		return ResolvedWSRoute{}, err
	}

	ov, err := r.expandRules(wr.OverrideRules)
	if err != nil {
		return ResolvedWSRoute{}, err
	}

	pingType := wr.PingType
	if pingType == "" {
		pingType = "ping"
	}

	return ResolvedWSRoute{
		MatchingPath:    wr.MatchingPath,
		MatchingHeaders: wr.MatchingHeaders,
		Protocol:        proto,
		PingType:        pingType,
		OverrideRules:   ov,
	}, nil
}

// checkTransportCoherence enforces: transport == QUIC iff quic_settings is
// present; tcp_settings present => transport == TCP; a Unix path bind =>
// transport == TCP.
func checkTransportCoherence(t address.Transport, hasTCP, hasQUIC, isPathBind bool) liberr.Error {
	if (t == address.TransportQUIC) != hasQUIC {
		return ErrorIncoherentTransport.Errorf("transport=quic requires quic_settings (and vice versa)")
	}

	if hasTCP && t != address.TransportTCP {
		return ErrorIncoherentTransport.Errorf("tcp_settings requires transport=tcp")
	}

	if isPathBind && t != address.TransportTCP {
		return ErrorBindPath.Error(nil)
	}

	return nil
}
