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

package handler_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/handler"
	"github.com/nabbar/golib/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func genCertFiles(dir, name, cn string) (certPath, keyPath string) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	Expect(err).ToNot(HaveOccurred())

	certPath = filepath.Join(dir, name+".crt")
	keyPath = filepath.Join(dir, name+".key")

	certOut, err := os.Create(certPath)
	Expect(err).ToNot(HaveOccurred())
	Expect(pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der})).To(Succeed())
	Expect(certOut.Close()).To(Succeed())

	pk, err := x509.MarshalPKCS8PrivateKey(priv)
	Expect(err).ToNot(HaveOccurred())
	keyOut, err := os.Create(keyPath)
	Expect(err).ToNot(HaveOccurred())
	Expect(pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: pk})).To(Succeed())
	Expect(keyOut.Close()).To(Succeed())

	return certPath, keyPath
}

func pipeConns() (net.Conn, net.Conn) {
	c1, c2 := net.Pipe()
	return c1, c2
}

var _ = Describe("http handler", func() {
	It("handshakes a CONNECT request and captures the success response", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "http"}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			_, _ = client.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindTcpForward))
		Expect(res.RemoteLocation.Host).To(Equal("example.com"))
		Expect(res.RemoteLocation.Port).To(Equal(uint16(443)))
		Expect(res.ConnectionSuccessResponse).ToNot(BeNil())
	})
})

var _ = Describe("socks handler", func() {
	It("handshakes a no-auth CONNECT request against an IPv4 target", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "socks"}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			_, _ = client.Write([]byte{0x05, 0x01, 0x00})
			method := make([]byte, 2)
			_, _ = io.ReadFull(client, method)

			req := []byte{0x05, 0x01, 0x00, 0x01, 93, 184, 216, 34, 0, 80}
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindTcpForward))
		Expect(res.RemoteLocation.Port).To(Equal(uint16(80)))
		Expect(res.ConnectionSuccessResponse).ToNot(BeNil())
	})
})

var _ = Describe("portforward handler", func() {
	It("always targets the first configured target", func() {
		t1, _ := address.ParseLocation("10.0.0.1:9000", 0)
		t2, _ := address.ParseLocation("10.0.0.2:9000", 0)

		h, err := handler.Build(&rules.ResolvedProtocol{Type: "portforward", Targets: []address.NetLocation{t1, t2}}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()
		defer server.Close()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.RemoteLocation).To(Equal(t1))
	})

	It("fails when no targets are configured", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "portforward"}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()
		defer server.Close()

		_, herr := h.Setup(context.Background(), server)
		Expect(herr).ToNot(BeNil())
	})
})

var _ = Describe("shadowsocks address decode", func() {
	It("decodes a domain-name address header", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "shadowsocks"}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := []byte{0x03, byte(len("example.org"))}
			req = append(req, []byte("example.org")...)
			req = append(req, 0x01, 0xBB)
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.RemoteLocation.Host).To(Equal("example.org"))
		Expect(res.RemoteLocation.Port).To(Equal(uint16(443)))
	})
})

var _ = Describe("tls handler", func() {
	It("routes by SNI to the matching inner protocol", func() {
		dir, err := os.MkdirTemp("", "handler-tls")
		Expect(err).To(BeNil())
		defer os.RemoveAll(dir)

		certPath, keyPath := genCertFiles(dir, "a", "a.test")

		t1, _ := address.ParseLocation("127.0.0.1:1111", 0)

		proto := &rules.ResolvedProtocol{
			Type: "tls",
			SNITargets: map[string]*rules.ResolvedTLSTarget{
				"a.test": {
					Cert: certPath,
					Key:  keyPath,
					Protocol: &rules.ResolvedProtocol{
						Type:    "portforward",
						Targets: []address.NetLocation{t1},
					},
				},
			},
		}

		h, err := handler.Build(proto, handler.Scope{})
		Expect(err).To(BeNil())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		defer ln.Close()

		type outcome struct {
			res handler.SetupResult
			err error
		}
		done := make(chan outcome, 1)

		go func() {
			conn, e := ln.Accept()
			if e != nil {
				done <- outcome{err: e}
				return
			}
			r, e2 := h.Setup(context.Background(), conn)
			done <- outcome{res: r, err: e2}
		}()

		cconn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{ServerName: "a.test", InsecureSkipVerify: true})
		Expect(err).To(BeNil())
		defer cconn.Close()

		out := <-done
		Expect(out.err).To(BeNil())
		Expect(out.res.RemoteLocation).To(Equal(t1))
	})
})

var _ = Describe("unsupported protocol", func() {
	It("rejects an unknown server protocol type", func() {
		_, err := handler.Build(&rules.ResolvedProtocol{Type: "quic-raw"}, handler.Scope{})
		Expect(err).ToNot(BeNil())
	})
})

var _ = Describe("override_rules selector", func() {
	It("leaves OverrideSelector nil when the scope carries no rules", func() {
		scope := handler.Scope{}
		Expect(scope.Selector()).To(BeNil())
	})

	It("builds a non-nil selector from scope rules and the portforward leaf handler surfaces it", func() {
		blockRules := []rules.ResolvedRule{{Masks: []address.NetLocationMask{address.Any}, Action: rules.ActionBlock}}
		scope := handler.Scope{Rules: blockRules}
		Expect(scope.Selector()).ToNot(BeNil())

		t1, _ := address.ParseLocation("10.0.0.1:9000", 0)
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "portforward", Targets: []address.NetLocation{t1}}, scope)
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()
		defer server.Close()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.OverrideSelector).ToNot(BeNil())

		decision := res.OverrideSelector.Judge(context.Background(), t1)
		Expect(decision.Block).To(BeTrue())
	})
})

var _ = Describe("codec UDP command parsing", func() {
	It("routes a vless UDP command to a single-target UDP forward", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "vless", UDPEnabled: true}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := make([]byte, 17) // version + uuid, contents irrelevant
			req = append(req, 0x00) // addons length
			req = append(req, 0x02) // command: UDP
			req = append(req, 0x01, 93, 184, 216, 34, 0, 80)
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindBidirectionalUdpForward))
		Expect(res.RemoteLocation.Port).To(Equal(uint16(80)))
	})

	It("leaves a vless TCP command as KindTcpForward even with udp_enabled", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "vless", UDPEnabled: true}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := make([]byte, 17)
			req = append(req, 0x00) // addons length
			req = append(req, 0x01) // command: Connect
			req = append(req, 0x01, 93, 184, 216, 34, 0, 80)
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindTcpForward))
	})

	It("routes a vmess UDP command to a multi-target UDP forward when AEAD-forced", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "vmess", UDPEnabled: true, ForceAEAD: true}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := make([]byte, 16) // auth id
			req = append(req, 0x02) // command: UDP
			req = append(req, 0x01, 93, 184, 216, 34, 0, 80)
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindMultidirectionalUdpForward))
	})

	It("does not route vmess UDP command to a UDP forward when udp_enabled is false", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "vmess", UDPEnabled: false, ForceAEAD: true}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := make([]byte, 16)
			req = append(req, 0x02)
			req = append(req, 0x01, 93, 184, 216, 34, 0, 80)
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindTcpForward))
	})

	It("routes a trojan UDP Associate command to a multi-target UDP forward", func() {
		h, err := handler.Build(&rules.ResolvedProtocol{Type: "trojan", UDPEnabled: true}, handler.Scope{})
		Expect(err).To(BeNil())

		client, server := pipeConns()
		defer client.Close()

		go func() {
			req := make([]byte, 56) // password hash, not checked when Password is empty
			req = append(req, '\r', '\n')
			req = append(req, 0x03) // command: UDP Associate
			req = append(req, 0x01, 93, 184, 216, 34, 0, 80)
			req = append(req, '\r', '\n')
			_, _ = client.Write(req)
		}()

		res, herr := h.Setup(context.Background(), server)
		Expect(herr).To(BeNil())
		Expect(res.Kind).To(Equal(handler.KindMultidirectionalUdpForward))
	})
})

