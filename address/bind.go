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

package address

import (
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

// BindLocation is either a network NetLocation or a filesystem path for a
// Unix domain socket listener.
type BindLocation struct {
	Net  NetLocation
	Path string
}

func (b BindLocation) IsPath() bool {
	return b.Path != ""
}

func (b BindLocation) String() string {
	if b.IsPath() {
		return b.Path
	}
	return b.Net.String()
}

// ParseBind parses a bind field: a leading "/", "./" or "unix:" marks a Unix
// socket path (the "unix:" prefix is stripped), anything else is a host:port.
func ParseBind(s string, defaultPort uint16) (BindLocation, liberr.Error) {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "unix:") {
		return BindLocation{Path: strings.TrimPrefix(s, "unix:")}, nil
	}

	loc, err := ParseLocation(s, defaultPort)
	if err != nil {
		return BindLocation{}, ErrorBindParse.Error(err)
	}

	return BindLocation{Net: loc}, nil
}
