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

// aliasKeys maps every recognized alias (§6) onto its canonical field key.
// Applied recursively over the whole document tree before decoding, so an
// alias used at any nesting depth (a rule inside an override_rules list,
// a target inside a portforward block) is normalized the same way.
var aliasKeys = map[string]string{
	"ss":              "shadowsocks",
	"ws":              "websocket",
	"forward":         "portforward",
	"socks5":          "socks",
	"target":          "targets",
	"rule":            "rules",
	"mask":            "masks",
	"client_proxy":    "client_proxies",
	"alpn_protocol":   "alpn_protocols",
	"override_rule":   "override_rules",
}

// normalize walks v (the result of a YAML unmarshal: maps, slices, and
// scalars) renaming alias keys to their canonical form in every map it
// finds.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			nk := k
			if canon, ok := aliasKeys[k]; ok {
				nk = canon
			}
			out[nk] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, _ := k.(string)
			if canon, ok := aliasKeys[ks]; ok {
				ks = canon
			}
			out[ks] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func normalizeType(v interface{}) string {
	if s, ok := v.(string); ok {
		if canon, ok := aliasKeys[s]; ok {
			return canon
		}
		return s
	}
	return ""
}
