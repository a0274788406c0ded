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

// NetLocation is a host:port pair. Host is either a literal IP or a DNS name;
// IsIP reports which, so the selector knows whether a mask comparison needs a
// resolver round-trip.
type NetLocation struct {
	Host string
	Port uint16
	ip   net.IP
}

// Unspecified is the zero-value location, used as the default egress bind.
var Unspecified = NetLocation{Host: "0.0.0.0", Port: 0, ip: net.IPv4zero}

// ParseLocation parses "host:port". If defaultPort is non-zero and s carries
// no port, defaultPort is used instead of failing.
func ParseLocation(s string, defaultPort uint16) (NetLocation, liberr.Error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		if defaultPort == 0 {
			return NetLocation{}, ErrorLocationParse.Error(err)
		}
		host = s
		portStr = strconv.Itoa(int(defaultPort))
	}

	host = strings.Trim(host, "[]")

	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NetLocation{}, ErrorLocationPort.Error(err)
	}

	return NetLocation{Host: host, Port: uint16(p), ip: net.ParseIP(host)}, nil
}

// IsIP reports whether Host parsed as a literal IP address.
func (l NetLocation) IsIP() bool {
	return l.ip != nil
}

// IP returns the parsed literal address, or nil if Host is a DNS name.
func (l NetLocation) IP() net.IP {
	return l.ip
}

// String renders "host:port", bracketing IPv6 literals.
func (l NetLocation) String() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(int(l.Port)))
}

func (l NetLocation) IsZero() bool {
	return l.Host == "" && l.Port == 0
}

// WithIP returns a copy of l with its resolved IP attached, used by the
// selector after a DNS lookup so mask matching can proceed without
// re-resolving.
func (l NetLocation) WithIP(ip net.IP) NetLocation {
	l.ip = ip
	return l
}
