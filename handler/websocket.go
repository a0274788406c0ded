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

package handler

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nabbar/golib/rules"
)

// wsPingMode is the keepalive policy derived from ResolvedWSRoute.PingType.
type wsPingMode uint8

const (
	wsPingDisabled wsPingMode = iota
	wsPingControlFrame
	wsPingEmptyData
)

type webSocketHandler struct {
	proto    *rules.ResolvedProtocol
	scope    Scope
	upgrader websocket.Upgrader
	routes   []wsRoute
}

type wsRoute struct {
	def     rules.ResolvedWSRoute
	handler Handler
	ping    wsPingMode
}

func newWebSocketHandler(proto *rules.ResolvedProtocol, scope Scope) (Handler, error) {
	h := &webSocketHandler{
		proto:    proto,
		scope:    scope,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
	}

	for _, r := range proto.Routes {
		child, err := Build(r.Protocol, scope.Push(r.OverrideRules))
		if err != nil {
			return nil, err
		}

		mode := wsPingDisabled
		switch r.PingType {
		case "ping":
			mode = wsPingControlFrame
		case "empty", "empty-data":
			mode = wsPingEmptyData
		}

		h.routes = append(h.routes, wsRoute{def: r, handler: child, ping: mode})
	}

	return h, nil
}

func (h *webSocketHandler) Setup(ctx context.Context, raw net.Conn) (SetupResult, error) {
	r := bufio.NewReader(raw)
	req, err := http.ReadRequest(r)
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	route, ok := h.matchRoute(req)
	if !ok {
		resp := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
		_, _ = raw.Write([]byte(resp))
		return SetupResult{}, ErrorNoRoute.Errorf("no websocket route matched %q", req.URL.Path)
	}

	respRec := &responseRecorder{raw: raw, header: http.Header{}, body: &bytes.Buffer{}, bufr: r}
	conn, err := h.upgrader.Upgrade(respRec, req, nil)
	if err != nil {
		_, _ = raw.Write(respRec.body.Bytes())
		return SetupResult{}, ErrorUpgrade.Error(err)
	}

	if route.ping == wsPingControlFrame {
		conn.SetPingHandler(func(data string) error {
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		})
	}

	stream := newWsStream(conn, route.ping)

	res, err := route.handler.Setup(ctx, stream)
	if err != nil {
		return SetupResult{}, err
	}

	return res, nil
}

func (h *webSocketHandler) matchRoute(req *http.Request) (wsRoute, bool) {
	for _, r := range h.routes {
		if r.def.MatchingPath != "" && r.def.MatchingPath != req.URL.Path {
			continue
		}

		matched := true
		for k, v := range r.def.MatchingHeaders {
			if req.Header.Get(k) != v {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		return r, true
	}

	return wsRoute{}, false
}

// responseRecorder is the minimal http.ResponseWriter gorilla/websocket
// needs to drive the upgrade handshake over a raw net.Conn instead of an
// http.Server-managed one. Hijack hands back the same connection and the
// bufio.Reader that already holds any bytes buffered past the request line,
// so nothing read ahead of the handshake is lost.
type responseRecorder struct {
	raw    net.Conn
	header http.Header
	body   *bytes.Buffer
	bufr   *bufio.Reader
	status int
}

func (r *responseRecorder) Header() http.Header         { return r.header }
func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }
func (r *responseRecorder) WriteHeader(status int)      { r.status = status }

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw := bufio.NewReadWriter(r.bufr, bufio.NewWriter(r.raw))
	return r.raw, rw, nil
}

// wsStream adapts a *websocket.Conn to io.ReadWriteCloser so the nested
// handler tree can treat it like any other stream.
type wsStream struct {
	conn *websocket.Conn
	ping wsPingMode
	r    io.Reader
}

func newWsStream(conn *websocket.Conn, ping wsPingMode) *wsStream {
	return &wsStream{conn: conn, ping: ping}
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.r != nil {
			n, err := w.r.Read(p)
			if err == io.EOF {
				w.r = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}

		mt, r, err := w.conn.NextReader()
		if err != nil {
			return 0, err
		}
		// An empty data frame (the empty-data keepalive) yields io.EOF with no
		// bytes on the first read above and is skipped there.
		if mt == websocket.PingMessage {
			continue
		}
		w.r = r
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) Close() error {
	return w.conn.Close()
}
