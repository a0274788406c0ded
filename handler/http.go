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
	"encoding/base64"
	"net"
	"net/http"
	"strings"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/rules"
)

type httpHandler struct {
	proto *rules.ResolvedProtocol
	scope Scope
}

func (h *httpHandler) Setup(_ context.Context, raw net.Conn) (SetupResult, error) {
	r := bufio.NewReader(raw)

	req, err := http.ReadRequest(r)
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	if h.proto.Username != "" {
		if !h.checkProxyAuth(req) {
			_, _ = raw.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
			return SetupResult{}, ErrorParse.Errorf("missing or invalid proxy-authorization")
		}
	}

	sel := h.scope.Selector()

	if strings.EqualFold(req.Method, "CONNECT") {
		target, e := address.ParseLocation(req.URL.Host, 443)
		if e != nil {
			target, e = address.ParseLocation(req.RequestURI, 443)
			if e != nil {
				return SetupResult{}, e
			}
		}

		return SetupResult{
			Kind:                      KindTcpForward,
			RemoteLocation:            target,
			Stream:                    raw,
			OverrideSelector:          sel,
			ConnectionSuccessResponse: []byte("HTTP/1.1 200 Connection Established\r\n\r\n"),
		}, nil
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	target, e := address.ParseLocation(host, 80)
	if e != nil {
		return SetupResult{}, e
	}

	var buf bytes.Buffer
	_ = req.Write(&buf)

	return SetupResult{
		Kind:              KindTcpForward,
		RemoteLocation:    target,
		Stream:            raw,
		OverrideSelector:  sel,
		InitialRemoteData: buf.Bytes(),
	}, nil
}

func (h *httpHandler) checkProxyAuth(req *http.Request) bool {
	hdr := req.Header.Get("Proxy-Authorization")
	if hdr == "" {
		return false
	}

	const prefix = "Basic "
	if !strings.HasPrefix(hdr, prefix) {
		return false
	}

	user, pass, ok := decodeBasicAuth(hdr[len(prefix):])
	if !ok {
		return false
	}

	return user == h.proto.Username && pass == h.proto.Password
}

func decodeBasicAuth(encoded string) (string, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	return parts[0], parts[1], true
}
