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

import (
	"fmt"

	liberr "github.com/nabbar/golib/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads one or more YAML documents, each shaped as a top-level map of
// `servers`, `client_groups` and `rule_groups`, merges them in argument
// order, and decodes the result into a Document. Each later file is merged
// over the earlier ones key by key: a top-level list in a later file
// replaces the list of the same key read before it; the lists of several
// files are not concatenated. Group-reference expansion is NOT performed here; call
// rules.Resolve on the returned Document.
func Load(paths ...string) (*Document, liberr.Error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for i, p := range paths {
		v.SetConfigFile(p)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, ErrorFileRead.Errorf(p, err)
		}
	}

	raw := normalize(v.AllSettings())

	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, ErrorDecode.Error(fmt.Errorf("document root is not a map"))
	}

	doc := &Document{}

	for _, e := range asSliceOfMaps(m["servers"]) {
		sc, err := decodeServer(e)
		if err != nil {
			return nil, err
		}
		doc.Servers = append(doc.Servers, sc)
	}

	for _, e := range asSliceOfMaps(m["client_groups"]) {
		var cg ClientGroup
		if err := mapstructure.Decode(e, &cg); err != nil {
			return nil, ErrorDecode.Error(err)
		}
		cg.Clients = decodeClientList(e["client_proxies"])
		doc.ClientGroups = append(doc.ClientGroups, cg)
	}

	for _, e := range asSliceOfMaps(m["rule_groups"]) {
		var rg RuleGroup
		if err := mapstructure.Decode(e, &rg); err != nil {
			return nil, ErrorDecode.Error(err)
		}
		for _, re := range asSliceOfMaps(e["rules"]) {
			rg.Rules = append(rg.Rules, decodeRule(re))
		}
		doc.RuleGroups = append(doc.RuleGroups, rg)
	}

	return doc, nil
}

func asSliceOfMaps(v interface{}) []map[string]interface{} {
	s, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(s))
	for _, e := range s {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}

	return out
}

func decodeServer(e map[string]interface{}) (ServerConfig, liberr.Error) {
	var sc ServerConfig
	if err := mapstructure.Decode(e, &sc); err != nil {
		return ServerConfig{}, ErrorDecode.Error(err)
	}

	sc.Protocol = decodeServerProtocol(e["protocol"])
	sc.Rules = decodeSelections(e["rules"])

	return sc, nil
}

func decodeServerProtocol(v interface{}) *ServerProtocol {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	var p ServerProtocol
	_ = mapstructure.Decode(m, &p)
	p.Type = normalizeType(m["type"])

	if tm, ok := m["default_target"].(map[string]interface{}); ok {
		p.DefaultTarget = decodeTLSTarget(tm)
	}

	if sni, ok := m["sni_targets"].(map[string]interface{}); ok {
		p.SNITargets = make(map[string]*TLSTarget, len(sni))
		for host, tv := range sni {
			if tm, ok := tv.(map[string]interface{}); ok {
				p.SNITargets[host] = decodeTLSTarget(tm)
			}
		}
	}

	if routes, ok := m["routes"].([]interface{}); ok {
		for _, rv := range routes {
			if rm, ok := rv.(map[string]interface{}); ok {
				p.Routes = append(p.Routes, decodeWebSocketRoute(rm))
			}
		}
	} else if _, hasPath := m["matching_path"]; hasPath || m["protocol"] != nil && p.Type == "websocket" {
		// a bare (non-list) websocket block is a single implicit route
		p.Routes = []WebSocketRoute{decodeWebSocketRoute(m)}
	}

	return &p
}

func decodeTLSTarget(m map[string]interface{}) *TLSTarget {
	var t TLSTarget
	_ = mapstructure.Decode(m, &t)
	t.Protocol = decodeServerProtocol(m["protocol"])
	t.OverrideRules = decodeSelections(m["override_rules"])
	return &t
}

func decodeWebSocketRoute(m map[string]interface{}) WebSocketRoute {
	var r WebSocketRoute
	_ = mapstructure.Decode(m, &r)
	r.Protocol = decodeServerProtocol(m["protocol"])
	r.OverrideRules = decodeSelections(m["override_rules"])
	return r
}

func decodeSelections(v interface{}) []Selection {
	s, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]Selection, 0, len(s))
	for _, e := range s {
		switch t := e.(type) {
		case string:
			out = append(out, Selection{Group: t})
		case map[string]interface{}:
			out = append(out, Selection{Inline: t})
		}
	}

	return out
}

func decodeRule(e map[string]interface{}) RuleConfig {
	var rc RuleConfig
	_ = mapstructure.Decode(e, &rc)
	rc.ClientProxies = decodeSelections(e["client_proxies"])
	return rc
}

// DecodeRule turns an inline Selection map into a RuleConfig. Exported for
// the rules package's group-expansion pass.
func DecodeRule(m map[string]interface{}) RuleConfig {
	return decodeRule(m)
}

// DecodeClient turns an inline Selection map into a ClientConfig. Exported
// for the rules package's group-expansion pass.
func DecodeClient(m map[string]interface{}) ClientConfig {
	var cc ClientConfig
	_ = mapstructure.Decode(m, &cc)
	if pm, ok := m["protocol"].(map[string]interface{}); ok {
		var cp ClientProtocol
		_ = mapstructure.Decode(pm, &cp)
		cc.Protocol = &cp
	}
	return cc
}

func decodeClientList(v interface{}) []ClientConfig {
	var out []ClientConfig
	for _, e := range asSliceOfMaps(v) {
		var cc ClientConfig
		_ = mapstructure.Decode(e, &cc)
		if pm, ok := e["protocol"].(map[string]interface{}); ok {
			var cp ClientProtocol
			_ = mapstructure.Decode(pm, &cp)
			cc.Protocol = &cp
		}
		out = append(out, cc)
	}
	return out
}
