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
	"github.com/nabbar/golib/rules"
)

// Build walks a ResolvedProtocol tree and returns the Handler for its root.
// Wrapping protocols (tls, websocket) build every child handler here, at
// Build time, from the targets and routes fixed in config; children are not
// built lazily. At Setup time a wrapper only picks which child runs, since
// that depends on data only seen on the wire (SNI, request path).
func Build(proto *rules.ResolvedProtocol, scope Scope) (Handler, error) {
	if proto == nil {
		return nil, ErrorUnsupportedProtocol.Errorf("nil protocol")
	}

	switch proto.Type {
	case "http":
		return &httpHandler{proto: proto, scope: scope}, nil
	case "socks", "socks5":
		return &socksHandler{proto: proto, scope: scope}, nil
	case "shadowsocks", "snell", "vless", "vmess", "trojan":
		return &codecHandler{proto: proto, scope: scope}, nil
	case "tls":
		return newTLSHandler(proto, scope)
	case "websocket":
		return newWebSocketHandler(proto, scope)
	case "portforward":
		return &portForwardHandler{proto: proto, scope: scope}, nil
	default:
		return nil, ErrorUnsupportedProtocol.Errorf(proto.Type)
	}
}
