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

package config_test

import (
	"os"
	"path/filepath"

	"github.com/nabbar/golib/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sample = `
servers:
  - bind: "127.0.0.1:1080"
    protocol:
      type: socks
    rules:
      - blocked-networks
      - masks: ["any"]
        action: allow
        client_proxies:
          - direct

client_groups:
  - client_group: direct
    client_proxies:
      - address: "0.0.0.0:0"

rule_groups:
  - rule_group: blocked-networks
    rules:
      - masks: ["10.0.0.0/8"]
        action: block
`

var _ = Describe("Load", func() {
	It("decodes a document with servers, client groups and rule groups", func() {
		dir := GinkgoT().TempDir()
		p := filepath.Join(dir, "proxy.yaml")
		Expect(os.WriteFile(p, []byte(sample), 0o600)).To(Succeed())

		doc, err := config.Load(p)
		Expect(err).To(BeNil())
		Expect(doc.Servers).To(HaveLen(1))
		Expect(doc.Servers[0].Protocol.Type).To(Equal("socks"))
		Expect(doc.Servers[0].Rules).To(HaveLen(2))
		Expect(doc.Servers[0].Rules[0].Group).To(Equal("blocked-networks"))
		Expect(doc.Servers[0].Rules[1].Inline).ToNot(BeNil())

		Expect(doc.ClientGroups).To(HaveLen(1))
		Expect(doc.ClientGroups[0].Name).To(Equal("direct"))
		Expect(doc.ClientGroups[0].Clients).To(HaveLen(1))

		Expect(doc.RuleGroups).To(HaveLen(1))
		Expect(doc.RuleGroups[0].Rules).To(HaveLen(1))
		Expect(doc.RuleGroups[0].Rules[0].Action).To(Equal("block"))
	})

	It("normalizes protocol type aliases such as ss and socks5", func() {
		dir := GinkgoT().TempDir()
		p := filepath.Join(dir, "alias.yaml")
		Expect(os.WriteFile(p, []byte(`
servers:
  - bind: "127.0.0.1:0"
    protocol:
      type: ss
      cipher: aes-256-gcm
      password: secret
`), 0o600)).To(Succeed())

		doc, err := config.Load(p)
		Expect(err).To(BeNil())
		Expect(doc.Servers[0].Protocol.Type).To(Equal("shadowsocks"))
	})
})
