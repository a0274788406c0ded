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
	"net"
	"strconv"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

// NetLocationMask is a CIDR-style address/prefix plus an optional exact port,
// or the wildcard Any that matches every location.
type NetLocationMask struct {
	any    bool
	prefix *net.IPNet
	port   uint16 // 0 means any port
}

// Any matches every NetLocation.
var Any = NetLocationMask{any: true}

// ParseMask parses "any", "address/prefix", "address/prefix:port" or
// "address:port" (host-route, /32 or /128 implied).
func ParseMask(s string) (NetLocationMask, liberr.Error) {
	if strings.EqualFold(s, "any") || s == "*" {
		return Any, nil
	}

	addrPart := s
	portPart := ""

	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i+1:], "/") {
		// disambiguate IPv6 literals like ::1/128 from a trailing :port
		if strings.Count(s, ":") == 1 || strings.HasPrefix(s, "[") {
			addrPart = s[:i]
			portPart = s[i+1:]
		}
	}

	var port uint16
	if portPart != "" {
		p, err := strconv.ParseUint(portPart, 10, 16)
		if err != nil {
			return NetLocationMask{}, ErrorMaskParse.Error(err)
		}
		port = uint16(p)
	}

	addrPart = strings.Trim(addrPart, "[]")

	if !strings.Contains(addrPart, "/") {
		ip := net.ParseIP(addrPart)
		if ip == nil {
			return NetLocationMask{}, ErrorMaskParse.Error(nil)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		addrPart = addrPart + "/" + strconv.Itoa(bits)
	}

	_, ipNet, err := net.ParseCIDR(addrPart)
	if err != nil {
		return NetLocationMask{}, ErrorMaskParse.Error(err)
	}

	return NetLocationMask{prefix: ipNet, port: port}, nil
}

// Matches reports whether loc falls inside the mask: port (exact or any) and
// address-prefix must both agree. A DNS-name location only ever matches Any.
func (m NetLocationMask) Matches(loc NetLocation) bool {
	if m.any {
		return true
	}

	if m.port != 0 && m.port != loc.Port {
		return false
	}

	if !loc.IsIP() {
		return false
	}

	return m.prefix.Contains(loc.IP())
}

func (m NetLocationMask) String() string {
	if m.any {
		return "any"
	}
	if m.port != 0 {
		return m.prefix.String() + ":" + strconv.Itoa(int(m.port))
	}
	return m.prefix.String()
}
