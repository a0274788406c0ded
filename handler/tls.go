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
	"crypto/tls"
	"net"

	"github.com/nabbar/golib/certificates"
	"github.com/nabbar/golib/rules"
)

// tlsHandler peels a TLS layer and dispatches by SNI to one of the child
// handlers built in newTLSHandler, picked at Setup time once the ClientHello
// is seen.
type tlsHandler struct {
	proto    *rules.ResolvedProtocol
	scope    Scope
	tlsConf  *tls.Config
	children map[string]*resolvedChild
	fallback *resolvedChild
}

type resolvedChild struct {
	handler Handler
	scope   Scope
}

func newTLSHandler(proto *rules.ResolvedProtocol, scope Scope) (Handler, error) {
	h := &tlsHandler{proto: proto, scope: scope, children: map[string]*resolvedChild{}}

	for sni, t := range proto.SNITargets {
		child, err := buildTLSTarget(t, scope)
		if err != nil {
			return nil, err
		}
		h.children[sni] = child
	}

	if proto.DefaultTarget != nil {
		child, err := buildTLSTarget(proto.DefaultTarget, scope)
		if err != nil {
			return nil, err
		}
		h.fallback = child
	}

	h.tlsConf = h.buildTLSConfig()

	return h, nil
}

func buildTLSTarget(t *rules.ResolvedTLSTarget, scope Scope) (*resolvedChild, error) {
	childScope := scope.Push(t.OverrideRules)
	hdl, err := Build(t.Protocol, childScope)
	if err != nil {
		return nil, err
	}
	return &resolvedChild{handler: hdl, scope: childScope}, nil
}

// buildTLSConfig picks the certificate by SNI using GetConfigForClient, so
// each sni_targets entry can, in principle, carry its own cert/key pair.
func (h *tlsHandler) buildTLSConfig() *tls.Config {
	base := &tls.Config{}

	certFor := func(sni string) (string, string) {
		if t, ok := h.proto.SNITargets[sni]; ok {
			return t.Cert, t.Key
		}
		if h.proto.DefaultTarget != nil {
			return h.proto.DefaultTarget.Cert, h.proto.DefaultTarget.Key
		}
		return "", ""
	}

	base.GetConfigForClient = func(chi *tls.ClientHelloInfo) (*tls.Config, error) {
		certFile, keyFile := certFor(chi.ServerName)
		if certFile == "" {
			return nil, ErrorNoRoute.Errorf("no certificate for sni %q", chi.ServerName)
		}

		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}

		cfg := certificates.New().TlsConfig("")
		cfg.Certificates = []tls.Certificate{cert}
		return cfg, nil
	}

	return base
}

func (h *tlsHandler) Setup(ctx context.Context, raw net.Conn) (SetupResult, error) {
	tconn := tls.Server(raw, h.tlsConf)
	if err := tconn.HandshakeContext(ctx); err != nil {
		return SetupResult{}, ErrorParse.Error(err)
	}

	sni := tconn.ConnectionState().ServerName

	child, ok := h.children[sni]
	if !ok {
		child = h.fallback
	}
	if child == nil {
		_ = tconn.Close()
		return SetupResult{}, ErrorNoRoute.Errorf("no sni_targets or default_target matched %q", sni)
	}

	res, err := child.handler.Setup(ctx, tconn)
	if err != nil {
		return SetupResult{}, err
	}

	return res, nil
}
