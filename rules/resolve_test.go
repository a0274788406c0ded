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

package rules_test

import (
	"github.com/nabbar/golib/config"
	"github.com/nabbar/golib/rules"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Resolve", func() {
	It("expands a group-referenced rule list down to its inline form", func() {
		doc := &config.Document{
			ClientGroups: []config.ClientGroup{{
				Name:    "g1",
				Clients: []config.ClientConfig{{}},
			}},
			RuleGroups: []config.RuleGroup{{
				Name: "r1",
				Rules: []config.RuleConfig{{
					Masks:  []string{"any"},
					Action: "allow",
					ClientProxies: []config.Selection{{Group: "g1"}},
				}},
			}},
			Servers: []config.ServerConfig{{
				Bind:     "127.0.0.1:1080",
				Protocol: &config.ServerProtocol{Type: "socks"},
				Rules:    []config.Selection{{Group: "r1"}},
			}},
		}

		servers, err := rules.Resolve(doc)
		Expect(err).To(BeNil())
		Expect(servers).To(HaveLen(1))
		Expect(servers[0].Rules).To(HaveLen(1))
		Expect(servers[0].Rules[0].Action).To(Equal(rules.ActionAllow))
		Expect(servers[0].Rules[0].ClientProxies).To(HaveLen(1))
	})

	It("seeds an empty rule list with allow any -> direct", func() {
		doc := &config.Document{
			Servers: []config.ServerConfig{{
				Bind:     "127.0.0.1:1080",
				Protocol: &config.ServerProtocol{Type: "http"},
			}},
		}

		servers, err := rules.Resolve(doc)
		Expect(err).To(BeNil())
		Expect(servers[0].Rules).To(HaveLen(1))
		Expect(servers[0].Rules[0].Action).To(Equal(rules.ActionAllow))
		Expect(servers[0].Rules[0].ClientProxies).To(HaveLen(1))
	})

	It("fails on an unknown group reference", func() {
		doc := &config.Document{
			Servers: []config.ServerConfig{{
				Bind:     "127.0.0.1:1080",
				Protocol: &config.ServerProtocol{Type: "http"},
				Rules:    []config.Selection{{Group: "does-not-exist"}},
			}},
		}

		_, err := rules.Resolve(doc)
		Expect(err).ToNot(BeNil())
	})

	It("fails on a duplicate group name", func() {
		doc := &config.Document{
			ClientGroups: []config.ClientGroup{
				{Name: "direct"},
			},
		}

		_, err := rules.Resolve(doc)
		Expect(err).ToNot(BeNil())
	})

	It("rejects a quic transport without quic_settings", func() {
		doc := &config.Document{
			Servers: []config.ServerConfig{{
				Bind:      "127.0.0.1:1080",
				Protocol:  &config.ServerProtocol{Type: "http"},
				Transport: "quic",
			}},
		}

		_, err := rules.Resolve(doc)
		Expect(err).ToNot(BeNil())
	})

	It("rejects a unix path bind over quic transport", func() {
		doc := &config.Document{
			Servers: []config.ServerConfig{{
				Path:         "/tmp/proxy.sock",
				Protocol:     &config.ServerProtocol{Type: "http"},
				Transport:    "quic",
				QuicSettings: &config.ServerQuicSettings{Cert: "c", Key: "k"},
			}},
		}

		_, err := rules.Resolve(doc)
		Expect(err).ToNot(BeNil())
	})
})
