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

// Package config decodes the YAML-shaped configuration document (servers,
// client-proxy groups, rule groups) into Go structs, applying the alias
// table and go-playground/validator struct-tag validation described in the
// repository's configuration notes. Group-reference expansion and
// cross-field invariants live in the rules package, which consumes this
// package's output.
package config

import "github.com/nabbar/golib/errors"

const (
	ErrorFileRead errors.CodeError = iota + errors.MinPkgConfig
	ErrorDecode
	ErrorEntryKind
	ErrorValidation
)

func init() {
	errors.RegisterIdFctMessage(ErrorFileRead, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorFileRead:
		return "cannot read configuration file"
	case ErrorDecode:
		return "cannot decode configuration entry"
	case ErrorEntryKind:
		return "configuration entry is neither a server, a client group nor a rule group"
	case ErrorValidation:
		return "configuration failed field validation"
	}

	return ""
}
