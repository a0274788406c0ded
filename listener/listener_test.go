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

package listener_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/config"
	"github.com/nabbar/golib/handler"
	"github.com/nabbar/golib/listener"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/selector"
	"github.com/nabbar/golib/supervisor"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type echoHandler struct{ target address.NetLocation }

func (h *echoHandler) Setup(_ context.Context, raw net.Conn) (handler.SetupResult, error) {
	return handler.SetupResult{Kind: handler.KindTcpForward, RemoteLocation: h.target, Stream: raw}, nil
}

func allowDirect() selector.Selector {
	return selector.New([]rules.ResolvedRule{
		{
			Masks:  []address.NetLocationMask{address.Any},
			Action: rules.ActionAllow,
			ClientProxies: []rules.ResolvedClient{
				{Config: config.ClientConfig{Protocol: &config.ClientProtocol{Type: "direct"}}},
			},
		},
	}, nil)
}

var _ = Describe("streamListener", func() {
	It("accepts TCP connections and forwards them through the supervisor", func() {
		upstream, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		defer upstream.Close()

		go func() {
			c, e := upstream.Accept()
			if e != nil {
				return
			}
			defer c.Close()
			buf := make([]byte, 4)
			_, _ = c.Read(buf)
			_, _ = c.Write(buf)
		}()

		target, _ := address.ParseLocation(upstream.Addr().String(), 0)

		sup := &supervisor.Supervisor{Handler: &echoHandler{target: target}, Selector: allowDirect()}

		ln, err := listener.NewTCP("127.0.0.1:0", sup, nil)
		Expect(err).To(BeNil())
		defer ln.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go ln.Serve(ctx)

		conn, err := net.Dial("tcp", ln.Addr())
		Expect(err).To(BeNil())
		defer conn.Close()

		_, err = conn.Write([]byte("ping"))
		Expect(err).To(BeNil())

		buf := make([]byte, 4)
		_, err = conn.Read(buf)
		Expect(err).To(BeNil())
		Expect(string(buf)).To(Equal("ping"))
	})

	It("removes a stale unix socket file before binding", func() {
		dir := os.TempDir()
		path := filepath.Join(dir, "golib-listener-test.sock")
		Expect(os.WriteFile(path, []byte("stale"), 0o600)).To(BeNil())
		defer os.Remove(path)

		sup := &supervisor.Supervisor{Handler: &echoHandler{}, Selector: allowDirect()}

		ln, err := listener.NewUnix(path, sup, nil)
		Expect(err).To(BeNil())
		defer ln.Close()

		Expect(ln.Addr()).To(Equal(path))
	})
})

var _ = Describe("Run", func() {
	It("shuts every listener down once the context is canceled", func() {
		sup := &supervisor.Supervisor{Handler: &echoHandler{}, Selector: allowDirect()}

		a, err := listener.NewTCP("127.0.0.1:0", sup, nil)
		Expect(err).To(BeNil())
		b, err := listener.NewTCP("127.0.0.1:0", sup, nil)
		Expect(err).To(BeNil())

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- listener.Run(ctx, a, b)
		}()

		cancel()

		Eventually(done, time.Second).Should(Receive())
	})
})
