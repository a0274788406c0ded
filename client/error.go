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

// Package client implements the egress side of a ClientConfig: dialing a
// target directly, or through another proxy of the http/socks family. The
// wire codec of the remaining client-proxy protocols (shadowsocks, snell,
// vless, vmess, trojan) is out of scope (SPEC_FULL.md §1 Out of scope); Dial
// reports ErrorProtocolUnsupported for them rather than silently degrading
// to Direct.
package client

import "github.com/nabbar/golib/errors"

const (
	ErrorDial errors.CodeError = iota + errors.MinPkgClient
	ErrorProtocolUnsupported
	ErrorUpstreamHandshake
)

func init() {
	errors.RegisterIdFctMessage(ErrorDial, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorDial:
		return "cannot dial upstream"
	case ErrorProtocolUnsupported:
		return "client proxy protocol is not implemented"
	case ErrorUpstreamHandshake:
		return "upstream proxy rejected the connect handshake"
	}

	return ""
}
