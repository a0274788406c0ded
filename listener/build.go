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
	"github.com/nabbar/golib/address"
	"github.com/nabbar/golib/certificates"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/supervisor"
	"github.com/quic-go/quic-go"
)

// Build opens the listener a ResolvedServer describes: a Unix socket if its
// bind carries a path, otherwise TCP or QUIC per its Transport.
func Build(srv *rules.ResolvedServer, sup *supervisor.Supervisor, log logger.Logger) (Listener, error) {
	if srv.Bind.IsPath() {
		return NewUnix(srv.Bind.Path, sup, log)
	}

	addr := srv.Bind.Net.String()

	if srv.Transport != address.TransportQUIC {
		return NewTCP(addr, sup, log)
	}

	if srv.QuicSettings == nil {
		return nil, ErrorQuicTLSConfig.Error(nil)
	}

	tls := certificates.New()
	if err := tls.AddCertificatePairFile(srv.QuicSettings.Key, srv.QuicSettings.Cert); err != nil {
		return nil, ErrorQuicTLSConfig.Error(err)
	}

	tlsConf := tls.TlsConfig("")
	if len(srv.QuicSettings.ALPNProtocols) > 0 {
		tlsConf.NextProtos = srv.QuicSettings.ALPNProtocols
	}

	return NewQUIC(addr, tlsConf, &quic.Config{}, sup, log)
}
