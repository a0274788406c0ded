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

package supervisor

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	libatm "github.com/nabbar/golib/atomic"
	"github.com/nabbar/golib/client"
	"github.com/nabbar/golib/config"
	libctx "github.com/nabbar/golib/context"
	"github.com/nabbar/golib/handler"
	"github.com/nabbar/golib/logger"
	logfld "github.com/nabbar/golib/logger/fields"
	"github.com/nabbar/golib/selector"
	"golang.org/x/sync/errgroup"
)

const (
	handshakeTimeout = 60 * time.Second
	dialTimeout      = 60 * time.Second
)

// Supervisor drives every connection accepted for one listener: the same
// Handler and Selector are shared (read-only) across all its invocations of
// Serve, one goroutine per connection, per the concurrency model.
type Supervisor struct {
	Handler  handler.Handler
	Selector selector.Selector
	TCP      *config.TcpSettings
	Log      logger.Logger
	Metrics  *Metrics

	activeOnce sync.Once
	active     libatm.Value[int64]
}

// activeCounter lazily builds the in-process active-connection counter, so a
// Supervisor built as a plain struct literal (as every test here does) never
// dereferences a nil atomic.Value.
func (s *Supervisor) activeCounter() libatm.Value[int64] {
	s.activeOnce.Do(func() {
		s.active = libatm.NewValue[int64]()
	})
	return s.active
}

// ActiveConnections reports how many connections this Supervisor is
// currently bridging, for a liveness/health endpoint to poll without
// scraping Prometheus.
func (s *Supervisor) ActiveConnections() int64 {
	return s.activeCounter().Load()
}

func (s *Supervisor) addActive(delta int64) {
	c := s.activeCounter()
	for {
		cur := c.Load()
		if c.CompareAndSwap(cur, cur+delta) {
			return
		}
	}
}

// Serve runs the full per-connection pipeline to completion. It always
// closes raw before returning.
func (s *Supervisor) Serve(ctx context.Context, raw net.Conn) {
	connID := uuid.NewString()

	// scope carries this connection's correlation metadata alongside ctx's
	// cancellation, so any downstream call that only has a context.Context
	// can still recover who it is serving without a parallel struct.
	scope := libctx.New[string](ctx)
	scope.Store("connection_id", connID)
	scope.Store("peer", raw.RemoteAddr().String())

	log := s.Log
	if log != nil {
		log = log.Clone(scope)
		log.SetFields(logfld.New(scope).Add("connection_id", connID).Add("peer", raw.RemoteAddr().String()))
	}

	s.addActive(1)
	defer s.addActive(-1)
	defer raw.Close()

	applyTCPNoDelay(raw, s.TCP, log)

	setupCtx, cancel := context.WithTimeout(scope, handshakeTimeout)
	start := time.Now()
	res, err := s.Handler.Setup(setupCtx, raw)
	cancel()

	if s.Metrics != nil {
		s.Metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		s.count("error")
		logError(log, "server handshake failed", err)
		return
	}

	sel := s.Selector
	if res.OverrideSelector != nil {
		sel = res.OverrideSelector
	}

	switch res.Kind {
	case handler.KindTcpForward:
		s.serveTCP(scope, raw, res, sel, log)
	case handler.KindBidirectionalUdpForward:
		s.serveBidirectionalUDP(scope, res, sel, log)
	case handler.KindMultidirectionalUdpForward:
		s.serveMultidirectionalUDP(scope, res, sel, log)
	}
}

func (s *Supervisor) serveTCP(ctx context.Context, raw net.Conn, res handler.SetupResult, sel selector.Selector, log logger.Logger) {
	decision := sel.Judge(ctx, res.RemoteLocation)
	if decision.Block {
		s.count("blocked")
		if s.Metrics != nil {
			s.Metrics.BlockedTotal.Inc()
		}
		logWarn(log, "connection blocked by rule", res.RemoteLocation.String())
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	upstream, err := client.Dial(dialCtx, decision.Client, decision.Remote)
	cancel()

	if err != nil {
		s.count("error")
		logError(log, "egress dial failed", err)
		return
	}
	defer upstream.Close()

	if res.ConnectionSuccessResponse != nil {
		if _, e := raw.Write(res.ConnectionSuccessResponse); e != nil {
			s.count("error")
			return
		}
	}

	if res.InitialRemoteData != nil {
		if _, e := upstream.Write(res.InitialRemoteData); e != nil {
			s.count("error")
			return
		}
	}

	s.count("forwarded")
	s.bridge(ctx, res.Stream, upstream, log)
}

// bridge copies both directions concurrently via errgroup and returns once
// both copies have ended; each copy half-closes its destination as soon as
// its source reaches EOF or errors, so the peer observes shutdown promptly.
func (s *Supervisor) bridge(ctx context.Context, a, b io.ReadWriteCloser, log logger.Logger) {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := io.Copy(b, a)
		if s.Metrics != nil {
			s.Metrics.BytesBridged.WithLabelValues("origin-to-upstream").Add(float64(n))
		}
		closeWrite(b)
		return err
	})

	g.Go(func() error {
		n, err := io.Copy(a, b)
		if s.Metrics != nil {
			s.Metrics.BytesBridged.WithLabelValues("upstream-to-origin").Add(float64(n))
		}
		closeWrite(a)
		return err
	})

	if err := g.Wait(); err != nil && log != nil {
		log.Debug("bridging loop ended", err)
	}
}

func (s *Supervisor) count(outcome string) {
	if s.Metrics != nil {
		s.Metrics.ConnectionsTotal.WithLabelValues(outcome).Inc()
	}
}

type halfCloser interface {
	CloseWrite() error
}

func closeWrite(w io.Writer) {
	if hc, ok := w.(halfCloser); ok {
		_ = hc.CloseWrite()
	}
}

func applyTCPNoDelay(raw net.Conn, tcp *config.TcpSettings, log logger.Logger) {
	if tcp == nil {
		return
	}

	tconn, ok := raw.(*net.TCPConn)
	if !ok {
		return
	}

	if err := tconn.SetNoDelay(tcp.NoDelayOrDefault()); err != nil && log != nil {
		log.Warning("failed to apply tcp_nodelay", err)
	}
}

func logError(log logger.Logger, message string, err error) {
	if log == nil {
		return
	}
	log.Error(message, err)
}

func logWarn(log logger.Logger, message string, data interface{}) {
	if log == nil {
		return
	}
	log.Warning(message, data)
}

