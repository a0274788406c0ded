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
	"net"

	"github.com/nabbar/golib/rules"
)

// portForwardHandler has no handshake: the target is fixed at config time.
// Multi-target PortForward configs always forward to targets[0] (resolved
// Open Question, SPEC_FULL.md §9) - no round-robin or health-aware
// selection is implemented.
type portForwardHandler struct {
	proto *rules.ResolvedProtocol
	scope Scope
}

func (h *portForwardHandler) Setup(_ context.Context, raw net.Conn) (SetupResult, error) {
	if len(h.proto.Targets) == 0 {
		return SetupResult{}, ErrorParse.Errorf("portforward protocol has no targets configured")
	}

	return SetupResult{
		Kind:             KindTcpForward,
		RemoteLocation:   h.proto.Targets[0],
		Stream:           raw,
		OverrideSelector: h.scope.Selector(),
	}, nil
}
