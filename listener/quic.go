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

package listener

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	libatm "github.com/nabbar/golib/atomic"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/supervisor"
	"github.com/quic-go/quic-go"
)

// quicListener accepts QUIC connections and, for each one, accepts exactly
// one stream - the proxied session - and hands it to the supervisor as a
// net.Conn. Additional streams opened on the same QUIC connection are not
// part of this protocol's scope; only the first is served.
type quicListener struct {
	ln   *quic.Listener
	sup  *supervisor.Supervisor
	log  logger.Logger
	addr string
	run  libatm.Value[bool]
}

// NewQUIC binds a QUIC listener at addr using tlsConf, which must carry at
// least one certificate (SPEC_FULL.md's quic_settings.cert/key).
func NewQUIC(addr string, tlsConf *tls.Config, cfg *quic.Config, sup *supervisor.Supervisor, log logger.Logger) (Listener, error) {
	if tlsConf == nil || len(tlsConf.Certificates) == 0 {
		return nil, ErrorQuicTLSConfig.Error(nil)
	}

	ln, err := quic.ListenAddr(addr, tlsConf, cfg)
	if err != nil {
		return nil, ErrorListen.Error(err)
	}

	return &quicListener{ln: ln, sup: sup, log: log, addr: addr, run: libatm.NewValue[bool]()}, nil
}

func (l *quicListener) Addr() string {
	return l.addr
}

func (l *quicListener) Close() error {
	return l.ln.Close()
}

func (l *quicListener) IsRunning() bool {
	return l.run.Load()
}

func (l *quicListener) Serve(ctx context.Context) error {
	l.run.Store(true)
	defer l.run.Store(false)

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrorAccept.Error(err)
		}

		go l.serveConn(ctx, conn)
	}
}

func (l *quicListener) serveConn(ctx context.Context, conn quic.Connection) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		if l.log != nil {
			l.log.Debug("quic stream accept failed", err)
		}
		_ = conn.CloseWithError(0, "")
		return
	}

	l.sup.Serve(ctx, &quicStreamConn{Stream: stream, conn: conn})
}

// quicStreamConn adapts a quic.Stream plus its owning quic.Connection to
// net.Conn, the shape every Handler and Supervisor operates on.
type quicStreamConn struct {
	quic.Stream
	conn quic.Connection
}

func (c *quicStreamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *quicStreamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *quicStreamConn) SetDeadline(t time.Time) error {
	if err := c.Stream.SetReadDeadline(t); err != nil {
		return err
	}
	return c.Stream.SetWriteDeadline(t)
}
