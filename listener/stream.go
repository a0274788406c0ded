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
	"net"
	"os"

	libatm "github.com/nabbar/golib/atomic"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/supervisor"
)

// streamListener drives any net.Listener (TCP or Unix) the same way: accept,
// spawn a goroutine per connection running sup.Serve, keep accepting.
type streamListener struct {
	ln   net.Listener
	sup  *supervisor.Supervisor
	log  logger.Logger
	addr string
	run  libatm.Value[bool]
}

// NewTCP binds a TCP listener at addr ("host:port").
func NewTCP(addr string, sup *supervisor.Supervisor, log logger.Logger) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ErrorListen.Error(err)
	}
	return &streamListener{ln: ln, sup: sup, log: log, addr: addr, run: libatm.NewValue[bool]()}, nil
}

// NewUnix binds a Unix domain socket at path. A pre-existing, non-listening
// socket file from a previous crashed run is unlinked (with a warning
// logged) before binding, matching the spec's stale-socket cleanup rule.
func NewUnix(path string, sup *supervisor.Supervisor, log logger.Logger) (Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if log != nil {
			log.Warning("removing stale unix socket before bind", path)
		}
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, ErrorUnixSocketStale.Error(rmErr)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, ErrorListen.Error(err)
	}
	return &streamListener{ln: ln, sup: sup, log: log, addr: path, run: libatm.NewValue[bool]()}, nil
}

func (l *streamListener) Addr() string {
	return l.addr
}

func (l *streamListener) Close() error {
	return l.ln.Close()
}

func (l *streamListener) IsRunning() bool {
	return l.run.Load()
}

func (l *streamListener) Serve(ctx context.Context) error {
	l.run.Store(true)
	defer l.run.Store(false)

	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrorAccept.Error(err)
		}

		go l.sup.Serve(ctx, conn)
	}
}
