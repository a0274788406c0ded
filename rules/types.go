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
	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/config"
)

// Action is the resolved RuleConfig action: Allow or Block.
type Action uint8

const (
	ActionBlock Action = iota
	ActionAllow
)

// ResolvedClient is a ClientConfig with its address/transport parsed and
// validated, ready for client.Dial.
type ResolvedClient struct {
	Config        config.ClientConfig
	Address       address.NetLocation
	Transport     address.Transport
}

// ResolvedRule is a RuleConfig with masks parsed and ClientConfig selections
// fully expanded (no GroupName survives).
type ResolvedRule struct {
	Masks           []address.NetLocationMask
	Action          Action
	OverrideAddress *address.NetLocation
	ClientProxies   []ResolvedClient
}

// ResolvedProtocol mirrors config.ServerProtocol with every nested
// override_rules selection expanded and every target address parsed.
type ResolvedProtocol struct {
	Type string

	Username string
	Password string

	Cipher string

	UserID     string
	ForceAEAD  bool
	UDPEnabled bool

	Shadowsocks *config.ShadowsocksFallback

	SNITargets    map[string]*ResolvedTLSTarget
	DefaultTarget *ResolvedTLSTarget

	Routes []ResolvedWSRoute

	Targets []address.NetLocation
}

// ResolvedTLSTarget is one TLS sni_targets entry (or default_target) with its
// inner protocol and override rules fully resolved.
type ResolvedTLSTarget struct {
	Cert          string
	Key           string
	ALPNProtocols []string
	Protocol      *ResolvedProtocol
	OverrideRules []ResolvedRule
}

// ResolvedWSRoute is one WebSocket route with its inner protocol and
// override rules fully resolved.
type ResolvedWSRoute struct {
	MatchingPath    string
	MatchingHeaders map[string]string
	Protocol        *ResolvedProtocol
	PingType        string
	OverrideRules   []ResolvedRule
}

// ResolvedServer is a ServerConfig ready to hand to a listener: bind
// location and rules parsed, group references expanded, default rule
// injected if the input list was empty.
type ResolvedServer struct {
	Bind         address.BindLocation
	Protocol     *ResolvedProtocol
	Transport    address.Transport
	TcpSettings  *config.TcpSettings
	QuicSettings *config.ServerQuicSettings
	Rules        []ResolvedRule
}
