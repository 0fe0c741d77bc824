package circuitbreaker_test

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var (
		registry *circuitbreaker.Registry
		boom     = errors.New("upstream down")
	)

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(3, 50*time.Millisecond, slog.Default())
	})

	It("returns the same breaker for the same service", func() {
		Expect(registry.GetBreaker("api")).To(BeIdenticalTo(registry.GetBreaker("api")))
		Expect(registry.GetBreaker("api")).NotTo(BeIdenticalTo(registry.GetBreaker("documents")))
	})

	It("creates breakers safely from many goroutines", func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				registry.GetBreaker("api")
			}()
		}
		wg.Wait()
		Expect(registry.Stats()).To(HaveLen(1))
	})

	It("passes errors from the call through", func() {
		Expect(registry.Execute("api", func() error { return boom })).To(MatchError(boom))
		Expect(registry.Execute("api", func() error { return nil })).To(Succeed())
	})

	It("opens after consecutive failures and rejects without calling", func() {
		for range 3 {
			_ = registry.Execute("api", func() error { return boom })
		}
		Expect(registry.Stats()).To(HaveKeyWithValue("api", "open"))

		called := false
		err := registry.Execute("api", func() error {
			called = true
			return nil
		})
		Expect(circuitbreaker.IsOpen(err)).To(BeTrue())
		Expect(called).To(BeFalse())
	})

	It("keeps services isolated", func() {
		for range 3 {
			_ = registry.Execute("api", func() error { return boom })
		}
		Expect(registry.Execute("documents", func() error { return nil })).To(Succeed())
	})

	It("closes again after a successful trial call", func() {
		for range 3 {
			_ = registry.Execute("api", func() error { return boom })
		}

		Eventually(func() error {
			return registry.Execute("api", func() error { return nil })
		}).WithTimeout(time.Second).WithPolling(10 * time.Millisecond).Should(Succeed())
		Expect(registry.Stats()).To(HaveKeyWithValue("api", "closed"))
	})

	It("reports no states for a nil registry", func() {
		var none *circuitbreaker.Registry
		Expect(none.Stats()).To(BeNil())
	})

	It("does not treat ordinary errors as rejections", func() {
		Expect(circuitbreaker.IsOpen(boom)).To(BeFalse())
		Expect(circuitbreaker.IsOpen(circuitbreaker.ErrOpen)).To(BeTrue())
	})
})
