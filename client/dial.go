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

package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/certificates"
	liberr "github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/rules"
)

// Dial reaches target on behalf of rc: straight to the network for Direct,
// or via a CONNECT-style handshake against rc.Address for http/socks
// client proxies.
func Dial(ctx context.Context, rc rules.ResolvedClient, target address.NetLocation) (net.Conn, liberr.Error) {
	proto := "direct"
	if rc.Config.Protocol != nil && rc.Config.Protocol.Type != "" {
		proto = rc.Config.Protocol.Type
	}

	switch proto {
	case "direct":
		return dialDirect(ctx, rc, target)
	case "http":
		return dialHTTPConnect(ctx, rc, target)
	case "socks", "socks5":
		return dialSocks5Connect(ctx, rc, target)
	default:
		return nil, ErrorProtocolUnsupported.Errorf(proto)
	}
}

func localAddr(rc rules.ResolvedClient) *net.TCPAddr {
	if rc.Config.Protocol != nil && rc.Config.Protocol.Type != "" && rc.Config.Protocol.Type != "direct" {
		return nil
	}
	if rc.Address.Port == 0 && rc.Address.IP() == nil {
		return nil
	}
	return &net.TCPAddr{IP: rc.Address.IP(), Port: int(rc.Address.Port)}
}

func dialDirect(ctx context.Context, rc rules.ResolvedClient, target address.NetLocation) (net.Conn, liberr.Error) {
	d := &net.Dialer{LocalAddr: localAddr(rc)}

	conn, err := d.DialContext(ctx, "tcp", target.String())
	if err != nil {
		return nil, ErrorDial.Error(err)
	}

	if rc.Config.Protocol != nil && rc.Config.Protocol.TLS != nil && rc.Config.Protocol.TLS.Enabled {
		cfg := certificates.New().TlsConfig(rc.Config.Protocol.TLS.ServerName)
		cfg.InsecureSkipVerify = !rc.Config.Protocol.TLS.VerifyOrDefault()
		conn = tls.Client(conn, cfg)
	}

	return conn, nil
}

func dialHTTPConnect(ctx context.Context, rc rules.ResolvedClient, target address.NetLocation) (net.Conn, liberr.Error) {
	conn, err := dialDirect(ctx, rc, rc.Address)
	if err != nil {
		return nil, err
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target.String(), target.String())
	if _, e := conn.Write([]byte(req)); e != nil {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Error(e)
	}

	line, e := bufio.NewReader(conn).ReadString('\n')
	if e != nil {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Error(e)
	}

	if !strings.Contains(line, "200") {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Errorf(strings.TrimSpace(line))
	}

	return conn, nil
}

func dialSocks5Connect(ctx context.Context, rc rules.ResolvedClient, target address.NetLocation) (net.Conn, liberr.Error) {
	conn, err := dialDirect(ctx, rc, rc.Address)
	if err != nil {
		return nil, err
	}

	if _, e := conn.Write([]byte{0x05, 0x01, 0x00}); e != nil {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Error(e)
	}

	reply := make([]byte, 2)
	if _, e := conn.Read(reply); e != nil || reply[0] != 0x05 || reply[1] != 0x00 {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Errorf("method negotiation failed")
	}

	req := buildSocks5ConnectRequest(target)
	if _, e := conn.Write(req); e != nil {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Error(e)
	}

	hdr := make([]byte, 4)
	if _, e := conn.Read(hdr); e != nil || hdr[1] != 0x00 {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Errorf("connect request refused")
	}

	if e := drainSocks5BoundAddress(conn, hdr[3]); e != nil {
		_ = conn.Close()
		return nil, ErrorUpstreamHandshake.Error(e)
	}

	return conn, nil
}

func buildSocks5ConnectRequest(target address.NetLocation) []byte {
	req := []byte{0x05, 0x01, 0x00}

	if ip := target.IP(); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			req = append(req, 0x01)
			req = append(req, v4...)
		} else {
			req = append(req, 0x04)
			req = append(req, ip.To16()...)
		}
	} else {
		req = append(req, 0x03, byte(len(target.Host)))
		req = append(req, []byte(target.Host)...)
	}

	req = append(req, byte(target.Port>>8), byte(target.Port))
	return req
}

func drainSocks5BoundAddress(conn net.Conn, atyp byte) error {
	var n int
	switch atyp {
	case 0x01:
		n = 4
	case 0x04:
		n = 16
	case 0x03:
		l := make([]byte, 1)
		if _, e := conn.Read(l); e != nil {
			return e
		}
		n = int(l[0])
	default:
		return fmt.Errorf("unknown bound address type %d", atyp)
	}

	buf := make([]byte, n+2)
	_, e := conn.Read(buf)
	return e
}
