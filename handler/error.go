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

// Package handler builds the nested, per-protocol server-side stream
// handshake described by a ResolvedProtocol tree: terminal handlers own a
// protocol codec, wrapping handlers (TLS, WebSocket) peel their layer and
// recurse into a child handler picked at setup time. The concrete wire
// codec of Shadowsocks/Snell/VLESS/VMess/Trojan is limited to address-header
// decoding (SPEC_FULL.md §1 Out of scope); the first data block is not read,
// and full payload framing for those protocols is not implemented.
package handler

import "github.com/nabbar/golib/errors"

const (
	ErrorHandshakeTimeout errors.CodeError = iota + errors.MinPkgHandler
	ErrorParse
	ErrorUnsupportedProtocol
	ErrorNoRoute
	ErrorUpgrade
)

func init() {
	errors.RegisterIdFctMessage(ErrorHandshakeTimeout, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorHandshakeTimeout:
		return "server handshake exceeded its time budget"
	case ErrorParse:
		return "cannot parse protocol handshake"
	case ErrorUnsupportedProtocol:
		return "server protocol is not implemented"
	case ErrorNoRoute:
		return "no inner route matched the request"
	case ErrorUpgrade:
		return "protocol upgrade failed"
	}

	return ""
}
