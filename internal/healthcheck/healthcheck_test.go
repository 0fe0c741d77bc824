package healthcheck_test

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/healthcheck"
)

var _ = Describe("Monitor", func() {
	var (
		healthy   *httptest.Server
		unhealthy *httptest.Server
		down      *httptest.Server
		registry  *backend.Registry
		monitor   *healthcheck.Monitor
		log       *slog.Logger
		recovered atomic.Bool
	)

	descriptor := func(name string, srv *httptest.Server, path string) backend.ServiceDescriptor {
		host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		return backend.ServiceDescriptor{Name: name, Host: host, Port: port, HealthCheckPath: path}
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))

		healthy = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		recovered.Store(false)
		unhealthy = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if recovered.Load() {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		down = httptest.NewServer(http.NotFoundHandler())
		down.Close()

		registry = backend.NewRegistry([]backend.ServiceDescriptor{
			descriptor("api", healthy, ""),
			descriptor("documents", unhealthy, "/health"),
			descriptor("auth", down, "/health"),
		}, backend.PoolConfig{}, log)
		monitor = healthcheck.NewMonitor(registry, log, nil)
	})

	AfterEach(func() {
		healthy.Close()
		unhealthy.Close()
	})

	Describe("IsHealthy", func() {
		It("treats any 2xx as healthy", func() {
			Expect(monitor.IsHealthy(context.Background(), "api")).To(BeTrue())
		})

		It("treats other statuses as unhealthy", func() {
			Expect(monitor.IsHealthy(context.Background(), "documents")).To(BeFalse())
		})

		It("treats transport errors as unhealthy", func() {
			Expect(monitor.IsHealthy(context.Background(), "auth")).To(BeFalse())
		})

		It("gives up after the check timeout", func() {
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(500 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			}))
			defer slow.Close()

			reg := backend.NewRegistry([]backend.ServiceDescriptor{descriptor("slow", slow, "")}, backend.PoolConfig{}, log)
			m := healthcheck.NewMonitor(reg, log, nil).WithCheckTimeout(50 * time.Millisecond)

			Expect(m.IsHealthy(context.Background(), "slow")).To(BeFalse())
		})

		It("treats unknown services as unhealthy", func() {
			Expect(monitor.IsHealthy(context.Background(), "billing")).To(BeFalse())
		})
	})

	Describe("CheckAll", func() {
		It("reports each service independently", func() {
			results := monitor.CheckAll(context.Background())
			Expect(results).To(Equal(map[string]bool{
				"api":       true,
				"documents": false,
				"auth":      false,
			}))
		})

		It("records the results on the services", func() {
			monitor.CheckAll(context.Background())

			known := monitor.LastKnown()
			Expect(known).To(HaveKey("documents"))
			Expect(known["documents"].Healthy).To(BeFalse())
			Expect(known["documents"].LastCheck.IsZero()).To(BeFalse())
			Expect(known["api"].Healthy).To(BeTrue())

			api, _ := registry.Get("api")
			Expect(api.IsHealthy()).To(BeTrue())
			Expect(api.LastCheck()).To(Equal(known["api"].LastCheck))
		})
	})

	Describe("Run", func() {
		It("marks a recovered service healthy again", func() {
			docs, _ := registry.Get("documents")
			docs.SetHealthy(false)

			recovered.Store(true)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go monitor.Run(ctx, 50*time.Millisecond)

			Eventually(docs.IsHealthy).WithTimeout(time.Second).Should(BeTrue())
		})

		It("should stop when context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				monitor.Run(ctx, 50*time.Millisecond)
				close(done)
			}()

			cancel()
			Eventually(done).WithTimeout(time.Second).Should(BeClosed())
		})

		It("does not panic on a zero interval", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				defer GinkgoRecover()
				defer close(done)
				monitor.Run(ctx, 0)
			}()

			api, _ := registry.Get("api")
			Eventually(func() bool { return !api.LastCheck().IsZero() }).WithTimeout(time.Second).Should(BeTrue())
			cancel()
			Eventually(done).WithTimeout(time.Second).Should(BeClosed())
		})
	})
})
