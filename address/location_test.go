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

package address_test

import (
	"github.com/nabbar/golib/address"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NetLocation", func() {
	Context("parsing", func() {
		It("parses an IPv4 host:port", func() {
			l, err := address.ParseLocation("192.168.1.1:8080", 0)
			Expect(err).To(BeNil())
			Expect(l.Host).To(Equal("192.168.1.1"))
			Expect(l.Port).To(Equal(uint16(8080)))
			Expect(l.IsIP()).To(BeTrue())
		})

		It("parses a bracketed IPv6 host:port", func() {
			l, err := address.ParseLocation("[::1]:53", 0)
			Expect(err).To(BeNil())
			Expect(l.Host).To(Equal("::1"))
			Expect(l.Port).To(Equal(uint16(53)))
		})

		It("applies the default port when none is given", func() {
			l, err := address.ParseLocation("example.test", 443)
			Expect(err).To(BeNil())
			Expect(l.Port).To(Equal(uint16(443)))
			Expect(l.IsIP()).To(BeFalse())
		})

		It("fails without a port and without a default", func() {
			_, err := address.ParseLocation("example.test", 0)
			Expect(err).ToNot(BeNil())
		})

		It("fails on an out-of-range port", func() {
			_, err := address.ParseLocation("example.test:99999", 0)
			Expect(err).ToNot(BeNil())
		})
	})

	Context("round-trip", func() {
		It("reparses its own String() form back to an equal location", func() {
			l, err := address.ParseLocation("10.0.0.5:22", 0)
			Expect(err).To(BeNil())

			l2, err := address.ParseLocation(l.String(), 0)
			Expect(err).To(BeNil())
			Expect(l2.Host).To(Equal(l.Host))
			Expect(l2.Port).To(Equal(l.Port))
		})
	})
})
