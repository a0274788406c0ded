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

package config

// Selection is either an inline value (decoded lazily by the rules package,
// since its shape depends on context: RuleConfig or ClientConfig) or a bare
// group-name string. It is exactly as read from YAML, before expansion.
type Selection struct {
	Group  string
	Inline map[string]interface{}
}

// TcpSettings mirrors TcpConfig: { no_delay: bool, default true }.
type TcpSettings struct {
	NoDelay *bool `mapstructure:"no_delay"`
}

func (t *TcpSettings) NoDelayOrDefault() bool {
	if t == nil || t.NoDelay == nil {
		return true
	}
	return *t.NoDelay
}

// ServerQuicSettings mirrors ServerQuicConfig.
type ServerQuicSettings struct {
	Cert          string   `mapstructure:"cert" validate:"required"`
	Key           string   `mapstructure:"key" validate:"required"`
	ALPNProtocols []string `mapstructure:"alpn_protocols"`
}

// ClientQuicSettings mirrors ClientQuicConfig.
type ClientQuicSettings struct {
	Verify        *bool    `mapstructure:"verify"`
	SNIHostname   string   `mapstructure:"sni_hostname"`
	ALPNProtocols []string `mapstructure:"alpn_protocols"`
}

func (c *ClientQuicSettings) VerifyOrDefault() bool {
	if c == nil || c.Verify == nil {
		return true
	}
	return *c.Verify
}

// ShadowsocksFallback is Trojan's optional decode-as-Shadowsocks fallback.
type ShadowsocksFallback struct {
	Cipher   string `mapstructure:"cipher" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
}

// TLSTarget is one entry of a TLS server's sni_targets map, or its
// default_target.
type TLSTarget struct {
	Cert          string                 `mapstructure:"cert" validate:"required"`
	Key           string                 `mapstructure:"key" validate:"required"`
	ALPNProtocols []string               `mapstructure:"alpn_protocols"`
	Protocol      *ServerProtocol        `mapstructure:"protocol" validate:"required"`
	OverrideRules []Selection            `mapstructure:"-"`
	overrideRaw   []interface{}          `mapstructure:"-"`
	Raw           map[string]interface{} `mapstructure:"-"`
}

// WebSocketRoute is one entry of a WebSocket server's route list.
type WebSocketRoute struct {
	MatchingPath    string            `mapstructure:"matching_path"`
	MatchingHeaders map[string]string `mapstructure:"matching_headers"`
	Protocol        *ServerProtocol   `mapstructure:"protocol" validate:"required"`
	PingType        string            `mapstructure:"ping_type"`
	OverrideRules   []Selection       `mapstructure:"-"`
}

// ServerProtocol is the tagged ServerProxyConfig. Type selects which of the
// remaining fields are meaningful; unused fields are left zero. The wire
// codec for shadowsocks/snell/vless/vmess/trojan is out of this repository's
// scope (see SPEC_FULL.md §1 Out of scope); only the address-header decode
// needed to reach a SetupResult is implemented downstream in handler/.
type ServerProtocol struct {
	Type string `mapstructure:"type" validate:"required"`

	// http / socks
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// shadowsocks / snell
	Cipher string `mapstructure:"cipher"`

	// vless / vmess
	UserID     string `mapstructure:"user_id"`
	ForceAEAD  *bool  `mapstructure:"force_aead"`
	UDPEnabled *bool  `mapstructure:"udp_enabled"`

	// trojan
	Shadowsocks *ShadowsocksFallback `mapstructure:"shadowsocks"`

	// tls
	SNITargets    map[string]*TLSTarget `mapstructure:"sni_targets"`
	DefaultTarget *TLSTarget            `mapstructure:"default_target"`

	// websocket
	Routes []WebSocketRoute `mapstructure:"routes"`

	// portforward
	Targets []string `mapstructure:"targets"`
}

func (p *ServerProtocol) ForceAEADOrDefault() bool {
	if p == nil || p.ForceAEAD == nil {
		return true
	}
	return *p.ForceAEAD
}

func (p *ServerProtocol) UDPEnabledOrDefault() bool {
	if p == nil || p.UDPEnabled == nil {
		return true
	}
	return *p.UDPEnabled
}

// ClientProtocol is the tagged ClientProxyConfig, mirroring ServerProtocol
// for the egress side. Type "direct" is the no-op tunnel.
type ClientProtocol struct {
	Type string `mapstructure:"type"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Cipher   string `mapstructure:"cipher"`
	UserID   string `mapstructure:"user_id"`

	ServerAddress string `mapstructure:"server"`

	TLS *ClientTLS `mapstructure:"tls"`
}

// ClientTLS configures egress TLS dialing when a ClientConfig targets a
// TLS-fronted upstream (wired onto certificates.TLSConfig downstream).
type ClientTLS struct {
	Enabled    bool   `mapstructure:"enabled"`
	ServerName string `mapstructure:"server_name"`
	Verify     *bool  `mapstructure:"verify"`
}

func (t *ClientTLS) VerifyOrDefault() bool {
	if t == nil || t.Verify == nil {
		return true
	}
	return *t.Verify
}

// ClientConfig mirrors the spec's ClientConfig.
type ClientConfig struct {
	BindInterface string          `mapstructure:"bind_interface"`
	Address       string          `mapstructure:"address"`
	Protocol      *ClientProtocol `mapstructure:"protocol"`
	Transport     string          `mapstructure:"transport"`
	TcpSettings   *TcpSettings    `mapstructure:"tcp_settings"`
	QuicSettings  *ClientQuicSettings `mapstructure:"quic_settings"`
}

// RuleConfig mirrors the spec's RuleConfig.
type RuleConfig struct {
	Masks           []string     `mapstructure:"masks" validate:"required,min=1"`
	Action          string       `mapstructure:"action" validate:"required,oneof=allow block"`
	OverrideAddress string       `mapstructure:"override_address"`
	ClientProxies   []Selection  `mapstructure:"-"`
}

// ServerConfig mirrors the spec's top-level ServerConfig.
type ServerConfig struct {
	Bind         string              `mapstructure:"bind"`
	Path         string              `mapstructure:"path"`
	Protocol     *ServerProtocol     `mapstructure:"protocol" validate:"required"`
	Transport    string              `mapstructure:"transport"`
	TcpSettings  *TcpSettings        `mapstructure:"tcp_settings"`
	QuicSettings *ServerQuicSettings `mapstructure:"quic_settings"`
	Rules        []Selection         `mapstructure:"-"`
}

// ClientGroup is a named, reusable list of ClientConfigs.
type ClientGroup struct {
	Name    string         `mapstructure:"client_group" validate:"required"`
	Clients []ClientConfig `mapstructure:"-"`
}

// RuleGroup is a named, reusable list of RuleConfigs.
type RuleGroup struct {
	Name  string       `mapstructure:"rule_group" validate:"required"`
	Rules []RuleConfig `mapstructure:"-"`
}

// Document is the fully-decoded, alias-normalized configuration, before
// group-reference expansion (performed by the rules package).
type Document struct {
	Servers      []ServerConfig
	ClientGroups []ClientGroup
	RuleGroups   []RuleGroup
}
