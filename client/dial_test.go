/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

package client_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/client"
	"github.com/nabbar/golib/config"
	"github.com/nabbar/golib/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func listenerLocation(ln net.Listener) address.NetLocation {
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	loc, _ := address.ParseLocation("127.0.0.1:"+strconv.Itoa(port), 0)
	return loc
}

var _ = Describe("Dial", func() {
	It("reaches a target directly and exchanges bytes", func() {
		target, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		defer target.Close()

		go func() {
			c, e := target.Accept()
			if e != nil {
				return
			}
			defer c.Close()
			buf := make([]byte, 5)
			_, _ = c.Read(buf)
			_, _ = c.Write(buf)
		}()

		rc := rules.ResolvedClient{Config: config.ClientConfig{Protocol: &config.ClientProtocol{Type: "direct"}}}

		conn, derr := client.Dial(context.Background(), rc, listenerLocation(target))
		Expect(derr).To(BeNil())
		defer conn.Close()

		_, err = conn.Write([]byte("hello"))
		Expect(err).To(BeNil())

		buf := make([]byte, 5)
		_, err = conn.Read(buf)
		Expect(err).To(BeNil())
		Expect(string(buf)).To(Equal("hello"))
	})

	It("performs an HTTP CONNECT handshake against the upstream proxy", func() {
		upstream, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		defer upstream.Close()

		go func() {
			c, e := upstream.Accept()
			if e != nil {
				return
			}
			defer c.Close()
			r := bufio.NewReader(c)
			line, _ := r.ReadString('\n')
			Expect(strings.HasPrefix(line, "CONNECT ")).To(BeTrue())
			for {
				l, e := r.ReadString('\n')
				if e != nil || l == "\r\n" {
					break
				}
			}
			_, _ = c.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		}()

		rc := rules.ResolvedClient{
			Config:  config.ClientConfig{Protocol: &config.ClientProtocol{Type: "http"}},
			Address: listenerLocation(upstream),
		}

		target, _ := address.ParseLocation("example.invalid:443", 0)
		conn, derr := client.Dial(context.Background(), rc, target)
		Expect(derr).To(BeNil())
		defer conn.Close()
	})

	It("performs a SOCKS5 CONNECT handshake against the upstream proxy", func() {
		upstream, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		defer upstream.Close()

		go func() {
			c, e := upstream.Accept()
			if e != nil {
				return
			}
			defer c.Close()

			hello := make([]byte, 3)
			_, _ = c.Read(hello)
			_, _ = c.Write([]byte{0x05, 0x00})

			hdr := make([]byte, 4)
			_, _ = c.Read(hdr)
			switch hdr[3] {
			case 0x01:
				rest := make([]byte, 6)
				_, _ = c.Read(rest)
			case 0x03:
				l := make([]byte, 1)
				_, _ = c.Read(l)
				rest := make([]byte, int(l[0])+2)
				_, _ = c.Read(rest)
			case 0x04:
				rest := make([]byte, 18)
				_, _ = c.Read(rest)
			}

			_, _ = c.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		}()

		rc := rules.ResolvedClient{
			Config:  config.ClientConfig{Protocol: &config.ClientProtocol{Type: "socks5"}},
			Address: listenerLocation(upstream),
		}

		target, _ := address.ParseLocation("198.51.100.1:80", 0)
		conn, derr := client.Dial(context.Background(), rc, target)
		Expect(derr).To(BeNil())
		defer conn.Close()
	})

	It("rejects an unsupported client proxy protocol", func() {
		rc := rules.ResolvedClient{Config: config.ClientConfig{Protocol: &config.ClientProtocol{Type: "shadowsocks"}}}
		target, _ := address.ParseLocation("127.0.0.1:1", 0)

		_, derr := client.Dial(context.Background(), rc, target)
		Expect(derr).ToNot(BeNil())
		Expect(derr.GetCode()).To(Equal(client.ErrorProtocolUnsupported))
	})
})
