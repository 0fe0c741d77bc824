package routing_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/routing"
)

var _ = Describe("Pattern", func() {
	Describe("CompilePattern", func() {
		It("matches literal paths exactly", func() {
			p, err := routing.CompilePattern("/api/v1/users")
			Expect(err).NotTo(HaveOccurred())

			_, ok := p.Match("/api/v1/users")
			Expect(ok).To(BeTrue())

			_, ok = p.Match("/api/v1/users/42")
			Expect(ok).To(BeFalse())
		})

		It("lets a trailing wildcard match the bare prefix and anything below it", func() {
			p, err := routing.CompilePattern("/api/v1/companies/*")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Wildcard()).To(BeTrue())

			for _, path := range []string{"/api/v1/companies", "/api/v1/companies/1", "/api/v1/companies/1/people"} {
				_, ok := p.Match(path)
				Expect(ok).To(BeTrue(), path)
			}

			_, ok := p.Match("/api/v1/companiesX")
			Expect(ok).To(BeFalse())
		})

		It("binds each named parameter to one segment", func() {
			p, err := routing.CompilePattern("/api/:version/users/:id")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ParamNames()).To(Equal([]string{"version", "id"}))

			params, ok := p.Match("/api/v2/users/42")
			Expect(ok).To(BeTrue())
			Expect(params).To(Equal(map[string]string{"version": "v2", "id": "42"}))

			_, ok = p.Match("/api/v2/users/42/extra")
			Expect(ok).To(BeFalse())
		})

		It("treats regex metacharacters in literals as plain text", func() {
			p, err := routing.CompilePattern("/files/report.pdf")
			Expect(err).NotTo(HaveOccurred())

			_, ok := p.Match("/files/reportXpdf")
			Expect(ok).To(BeFalse())
		})

		DescribeTable("rejects malformed templates",
			func(raw string) {
				_, err := routing.CompilePattern(raw)
				Expect(err).To(MatchError(routing.ErrInvalidPattern))
			},
			Entry("relative path", "api/v1"),
			Entry("wildcard before the end", "/api/*/users"),
			Entry("wildcard inside a segment", "/api/v1/user*"),
			Entry("malformed parameter", "/api/:1bad"),
			Entry("repeated parameter", "/api/:id/:id"),
		)
	})

	Describe("Canonicalize", func() {
		It("drops one trailing slash", func() {
			Expect(routing.Canonicalize("/api/v1/users/")).To(Equal("/api/v1/users"))
		})

		It("leaves the root alone", func() {
			Expect(routing.Canonicalize("/")).To(Equal("/"))
			Expect(routing.Canonicalize("")).To(Equal("/"))
		})
	})
})
