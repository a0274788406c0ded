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
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/rules"
)

type socksHandler struct {
	proto *rules.ResolvedProtocol
	scope Scope
}

const (
	socksVerNoAuth   = 0x00
	socksVerUserPass = 0x02
)

func (h *socksHandler) Setup(_ context.Context, raw net.Conn) (SetupResult, error) {
	if err := h.negotiateMethod(raw); err != nil {
		return SetupResult{}, err
	}

	hdr := make([]byte, 4)
	if _, e := io.ReadFull(raw, hdr); e != nil {
		return SetupResult{}, ErrorParse.Error(e)
	}

	if hdr[0] != 0x05 {
		return SetupResult{}, ErrorParse.Errorf("unsupported socks version %d", hdr[0])
	}
	if hdr[1] != 0x01 {
		return SetupResult{}, ErrorParse.Errorf("only the CONNECT command is supported")
	}

	target, err := readSocksAddress(raw, hdr[3])
	if err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	return SetupResult{
		Kind:                      KindTcpForward,
		RemoteLocation:            target,
		Stream:                    raw,
		OverrideSelector:          h.scope.Selector(),
		ConnectionSuccessResponse: []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0},
	}, nil
}

func (h *socksHandler) negotiateMethod(raw net.Conn) error {
	hdr := make([]byte, 2)
	if _, e := io.ReadFull(raw, hdr); e != nil {
		return ErrorParse.Error(e)
	}
	if hdr[0] != 0x05 {
		return ErrorParse.Errorf("unsupported socks version %d", hdr[0])
	}

	methods := make([]byte, hdr[1])
	if _, e := io.ReadFull(raw, methods); e != nil {
		return ErrorParse.Error(e)
	}

	needAuth := h.proto.Username != ""
	selected := byte(0xFF)
	for _, m := range methods {
		if needAuth && m == socksVerUserPass {
			selected = socksVerUserPass
			break
		}
		if !needAuth && m == socksVerNoAuth {
			selected = socksVerNoAuth
			break
		}
	}

	if _, e := raw.Write([]byte{0x05, selected}); e != nil {
		return ErrorParse.Error(e)
	}
	if selected == 0xFF {
		return ErrorParse.Errorf("no acceptable authentication method")
	}

	if selected == socksVerUserPass {
		return h.negotiateUserPass(raw)
	}

	return nil
}

func (h *socksHandler) negotiateUserPass(raw net.Conn) error {
	hdr := make([]byte, 2)
	if _, e := io.ReadFull(raw, hdr); e != nil {
		return ErrorParse.Error(e)
	}

	user := make([]byte, hdr[1])
	if _, e := io.ReadFull(raw, user); e != nil {
		return ErrorParse.Error(e)
	}

	plen := make([]byte, 1)
	if _, e := io.ReadFull(raw, plen); e != nil {
		return ErrorParse.Error(e)
	}

	pass := make([]byte, plen[0])
	if _, e := io.ReadFull(raw, pass); e != nil {
		return ErrorParse.Error(e)
	}

	ok := string(user) == h.proto.Username && string(pass) == h.proto.Password
	status := byte(0x00)
	if !ok {
		status = 0x01
	}

	if _, e := raw.Write([]byte{0x01, status}); e != nil {
		return ErrorParse.Error(e)
	}
	if !ok {
		return ErrorParse.Errorf("socks5 authentication failed")
	}

	return nil
}

func readSocksAddress(r io.Reader, atyp byte) (address.NetLocation, error) {
	var host string

	switch atyp {
	case 0x01:
		buf := make([]byte, 4)
		if _, e := io.ReadFull(r, buf); e != nil {
			return address.NetLocation{}, e
		}
		host = net.IP(buf).String()
	case 0x04:
		buf := make([]byte, 16)
		if _, e := io.ReadFull(r, buf); e != nil {
			return address.NetLocation{}, e
		}
		host = net.IP(buf).String()
	case 0x03:
		l := make([]byte, 1)
		if _, e := io.ReadFull(r, l); e != nil {
			return address.NetLocation{}, e
		}
		buf := make([]byte, l[0])
		if _, e := io.ReadFull(r, buf); e != nil {
			return address.NetLocation{}, e
		}
		host = string(buf)
	default:
		return address.NetLocation{}, fmt.Errorf("unknown socks address type %d", atyp)
	}

	port := make([]byte, 2)
	if _, e := io.ReadFull(r, port); e != nil {
		return address.NetLocation{}, e
	}

	loc, err := address.ParseLocation(net.JoinHostPort(host, strconv.Itoa(int(port[0])<<8|int(port[1]))), 0)
	if err != nil {
		return address.NetLocation{}, err
	}

	return loc, nil
}
