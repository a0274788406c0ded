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

// Package supervisor drives one accepted connection from its raw stream
// through the handler handshake, the selector judgement, and the egress
// dial, into a bidirectional (or UDP-framed) copy loop. Every per-connection
// failure is isolated here: it never reaches the listener's accept loop.
package supervisor

import "github.com/nabbar/golib/errors"

const (
	ErrorSetupTimeout errors.CodeError = iota + errors.MinPkgSupervisor
	ErrorDialTimeout
	ErrorBlocked
	ErrorCopy
)

func init() {
	errors.RegisterIdFctMessage(ErrorSetupTimeout, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorSetupTimeout:
		return "server handshake exceeded its time budget"
	case ErrorDialTimeout:
		return "egress dial exceeded its time budget"
	case ErrorBlocked:
		return "connection blocked by rule"
	case ErrorCopy:
		return "bridging loop ended in error"
	}

	return ""
}
