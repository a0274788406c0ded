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

// Package address models proxy target locations and CIDR-style masks: the
// host:port pairs that flow through the rule resolver and the selector, and
// the prefix/port matcher the selector runs against them.
package address

import "github.com/nabbar/golib/errors"

const (
	ErrorLocationParse errors.CodeError = iota + errors.MinPkgAddress
	ErrorLocationPort
	ErrorMaskParse
	ErrorMaskPrefix
	ErrorBindParse
)

func init() {
	errors.RegisterIdFctMessage(ErrorLocationParse, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorLocationParse:
		return "cannot parse host:port location"
	case ErrorLocationPort:
		return "port is out of range"
	case ErrorMaskParse:
		return "cannot parse address mask"
	case ErrorMaskPrefix:
		return "prefix length is out of range for address family"
	case ErrorBindParse:
		return "cannot parse bind location"
	}

	return ""
}
