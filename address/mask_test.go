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

var _ = Describe("NetLocationMask", func() {
	It("matches everything for the any mask", func() {
		m, err := address.ParseMask("any")
		Expect(err).To(BeNil())

		l, _ := address.ParseLocation("203.0.113.5:80", 0)
		Expect(m.Matches(l)).To(BeTrue())
	})

	It("matches addresses inside a CIDR prefix", func() {
		m, err := address.ParseMask("10.0.0.0/8")
		Expect(err).To(BeNil())

		inside, _ := address.ParseLocation("10.1.2.3:22", 0)
		outside, _ := address.ParseLocation("11.1.2.3:22", 0)

		Expect(m.Matches(inside)).To(BeTrue())
		Expect(m.Matches(outside)).To(BeFalse())
	})

	It("matches an exact port when one is specified", func() {
		m, err := address.ParseMask("10.0.0.0/8:22")
		Expect(err).To(BeNil())

		right, _ := address.ParseLocation("10.1.2.3:22", 0)
		wrong, _ := address.ParseLocation("10.1.2.3:23", 0)

		Expect(m.Matches(right)).To(BeTrue())
		Expect(m.Matches(wrong)).To(BeFalse())
	})

	It("never matches a DNS-name location against a concrete prefix", func() {
		m, err := address.ParseMask("10.0.0.0/8")
		Expect(err).To(BeNil())

		l, _ := address.ParseLocation("example.test:80", 0)
		Expect(m.Matches(l)).To(BeFalse())
	})

	It("treats a bare host as a /32 or /128 host route", func() {
		m, err := address.ParseMask("10.0.0.5")
		Expect(err).To(BeNil())

		same, _ := address.ParseLocation("10.0.0.5:1", 0)
		other, _ := address.ParseLocation("10.0.0.6:1", 0)

		Expect(m.Matches(same)).To(BeTrue())
		Expect(m.Matches(other)).To(BeFalse())
	})
})
