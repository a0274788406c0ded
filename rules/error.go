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

// Package rules resolves a config.Document into validated ServerConfig
// values: group references expanded to their inline form, transport/TLS
// coherence checked, and an empty rule list seeded with the built-in
// "allow any -> direct" default.
package rules

import "github.com/nabbar/golib/errors"

const (
	ErrorDuplicateGroup errors.CodeError = iota + errors.MinPkgProxyRules
	ErrorUnknownGroup
	ErrorIncoherentTransport
	ErrorInvalidMask
	ErrorInvalidAddress
	ErrorBindPath
)

func init() {
	errors.RegisterIdFctMessage(ErrorDuplicateGroup, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorDuplicateGroup:
		return "group name is already registered"
	case ErrorUnknownGroup:
		return "referenced group name is not registered"
	case ErrorIncoherentTransport:
		return "transport and its settings are incoherent"
	case ErrorInvalidMask:
		return "cannot parse rule mask"
	case ErrorInvalidAddress:
		return "cannot parse bind or override address"
	case ErrorBindPath:
		return "unix socket bind requires tcp transport"
	}

	return ""
}
