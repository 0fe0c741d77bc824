package routing_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/routing"
)

var _ = Describe("VersionPolicy", func() {
	policy := routing.VersionPolicy{
		Current:    "v2",
		Supported:  []string{"v1", "v2"},
		Deprecated: []string{"v1"},
		Default:    "v1",
	}

	It("answers membership questions", func() {
		Expect(policy.IsSupported("v2")).To(BeTrue())
		Expect(policy.IsSupported("v3")).To(BeFalse())
		Expect(policy.IsDeprecated("v1")).To(BeTrue())
		Expect(policy.IsDeprecated("v2")).To(BeFalse())
	})

	It("falls back to the default version", func() {
		Expect(policy.Effective("")).To(Equal("v1"))
		Expect(policy.Effective("v2")).To(Equal("v2"))
	})

	It("accepts a consistent policy", func() {
		Expect(policy.Validate()).To(BeEmpty())
	})

	It("reports every inconsistency", func() {
		bad := routing.VersionPolicy{
			Current:    "v3",
			Supported:  []string{"v1"},
			Deprecated: []string{"v0"},
			Default:    "v2",
		}
		errs := bad.Validate()
		Expect(errs).To(HaveLen(3))
		for _, err := range errs {
			Expect(err).To(MatchError(routing.ErrInvalidVersions))
		}
	})

	DescribeTable("VersionFromPath",
		func(path, want string) {
			Expect(routing.VersionFromPath(path)).To(Equal(want))
		},
		Entry("versioned path", "/api/v1/users", "v1"),
		Entry("bare version", "/api/v12", "v12"),
		Entry("no version segment", "/api/users", ""),
		Entry("not under /api", "/v1/users", ""),
		Entry("version-like prefix", "/api/v1beta/users", ""),
	)
})
