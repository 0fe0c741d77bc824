package routing_test

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/routing"
)

var _ = Describe("Resolver", func() {
	var (
		registry services
		resolver *routing.Resolver
	)

	build := func(cfg routing.TableConfig) *routing.Resolver {
		table, err := routing.NewTable(cfg, registry)
		Expect(err).NotTo(HaveOccurred())
		return routing.NewResolver(table, registry)
	}

	BeforeEach(func() {
		registry = services{
			"api":       "http://localhost:3001",
			"documents": "http://localhost:3002",
			"auth":      "http://localhost:3003",
		}

		resolver = build(routing.TableConfig{
			Versions: routing.VersionPolicy{
				Current:   "v1",
				Supported: []string{"v1", "v2"},
				Default:   "v1",
			},
			Static: map[string][]routing.RouteDefinition{
				"v1": {
					{Pattern: "/api/v1/documents/*", Target: "documents", Rewrites: []routing.RewriteRule{
						{Match: "^/api/v1/documents", Replace: "/documents"},
					}},
					{Pattern: "/api/v1/auth/*", Target: "auth", Methods: []string{"post"}},
				},
			},
			Dynamic: []routing.RouteDefinition{
				{
					Pattern:                   "/api/:version/*",
					Target:                    "api",
					RequiresVersionValidation: true,
					Rewrites: []routing.RewriteRule{
						{Match: "^/api/:version", Replace: "/api/:version"},
					},
				},
			},
		})
	})

	It("returns the same route for the same input", func() {
		first, ok, err := resolver.Resolve("/api/v1/companies/7", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		for range 10 {
			again, ok, err := resolver.Resolve("/api/v1/companies/7", "v1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(again.Service).To(Equal(first.Service))
			Expect(again.RewrittenPath).To(Equal(first.RewrittenPath))
			Expect(again.Params).To(Equal(first.Params))
		}
	})

	It("prefers a static route over a dynamic one", func() {
		route, ok, err := resolver.Resolve("/api/v1/documents/invoice-1", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.Service).To(Equal("documents"))
		Expect(route.IsDynamic).To(BeFalse())
		Expect(route.TargetBaseURL).To(Equal("http://localhost:3002"))
		Expect(route.RewrittenPath).To(Equal("/documents/invoice-1"))
	})

	It("falls back to the dynamic table when no static route matches", func() {
		route, ok, err := resolver.Resolve("/api/v1/companies", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.Service).To(Equal("api"))
		Expect(route.IsDynamic).To(BeTrue())
		Expect(route.Params).To(HaveKeyWithValue("version", "v1"))
	})

	It("keeps the path intact for an identity rewrite", func() {
		route, ok, err := resolver.Resolve("/api/v1/companies", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.RewrittenPath).To(Equal("/api/v1/companies"))
	})

	It("does not match an unsupported version and does not fall through", func() {
		route, ok, err := resolver.Resolve("/api/v3/x", "v3")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(route).To(BeNil())
	})

	It("uses the default version when none is given", func() {
		route, ok, err := resolver.Resolve("/api/v1/documents/a", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.Service).To(Equal("documents"))
		Expect(route.Version).To(Equal("v1"))
	})

	It("takes the version from the :version parameter of a dynamic route", func() {
		route, ok, err := resolver.Resolve("/api/v2/companies", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.Version).To(Equal("v2"))
	})

	It("ignores a single trailing slash", func() {
		route, ok, err := resolver.Resolve("/api/v1/documents/", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.RewrittenPath).To(Equal("/documents"))
	})

	Describe("ResolveURL", func() {
		resolveURL := func(raw string) *routing.ResolvedRoute {
			u, err := url.Parse(raw)
			Expect(err).NotTo(HaveOccurred())
			route, ok, err := resolver.ResolveURL(u, routing.VersionFromPath(u.Path))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			return route
		}

		It("keeps an encoded slash through an identity rewrite", func() {
			route := resolveURL("/api/v2/files/reports%2F2024.pdf")
			Expect(route.RewrittenPath).To(Equal("/api/v2/files/reports/2024.pdf"))
			Expect(route.RewrittenRawPath).To(Equal("/api/v2/files/reports%2F2024.pdf"))
		})

		It("keeps an encoded slash through a prefix rewrite", func() {
			route := resolveURL("/api/v1/documents/a%2Fb/")
			Expect(route.RewrittenPath).To(Equal("/documents/a/b"))
			Expect(route.RewrittenRawPath).To(Equal("/documents/a%2Fb"))
		})

		It("leaves the raw path empty for plain paths", func() {
			route := resolveURL("/api/v1/documents/a/b")
			Expect(route.RewrittenPath).To(Equal("/documents/a/b"))
			Expect(route.RewrittenRawPath).To(BeEmpty())
		})
	})

	It("reports no match for paths outside the table", func() {
		_, ok, err := resolver.Resolve("/favicon.ico", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("exposes the matched definition for method checks", func() {
		route, ok, err := resolver.Resolve("/api/v1/auth/login", "v1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(route.Route.AllowsMethod("POST")).To(BeTrue())
		Expect(route.Route.AllowsMethod("GET")).To(BeFalse())
	})

	Context("when the target is not registered", func() {
		It("returns an unknown service error instead of no match", func() {
			table, err := routing.NewTable(routing.TableConfig{
				Versions: routing.VersionPolicy{Current: "v1", Supported: []string{"v1"}, Default: "v1"},
				Dynamic:  []routing.RouteDefinition{{Pattern: "/reports/*", Target: "reports"}},
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			route, ok, err := routing.NewResolver(table, registry).Resolve("/reports/q1", "")
			Expect(ok).To(BeTrue())
			Expect(err).To(MatchError(routing.ErrUnknownService))
			Expect(route.Service).To(Equal("reports"))
		})
	})

	Context("with parameters in the rewrite rules", func() {
		BeforeEach(func() {
			resolver = build(routing.TableConfig{
				Versions: routing.VersionPolicy{Current: "v1", Supported: []string{"v1"}, Default: "v1"},
				Dynamic: []routing.RouteDefinition{
					{
						Pattern: "/tenants/:tenant/files/*",
						Target:  "documents",
						Rewrites: []routing.RewriteRule{
							{Match: "^/tenants/:tenant/files", Replace: "/storage/:tenant"},
							{Match: "/storage/", Replace: "/v2/storage/"},
						},
					},
				},
			})
		})

		It("substitutes the extracted values and applies rules in order", func() {
			route, ok, err := resolver.Resolve("/tenants/acme/files/report.pdf", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(route.RewrittenPath).To(Equal("/v2/storage/acme/report.pdf"))
		})

		It("quotes parameter values used inside the match expression", func() {
			route, ok, err := resolver.Resolve("/tenants/a.c$e/files/x", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(route.RewrittenPath).To(Equal("/v2/storage/a.c$e/x"))
		})
	})
})
