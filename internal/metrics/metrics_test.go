package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-router/internal/metrics"
)

type fixedHealth map[string]metrics.ServiceHealth

func (f fixedHealth) LastKnown() map[string]metrics.ServiceHealth { return f }

type fixedBreakers map[string]string

func (f fixedBreakers) Stats() map[string]string { return f }

var _ = Describe("Stats", func() {
	var stats *metrics.Stats

	BeforeEach(func() {
		stats = metrics.NewStats()
	})

	It("starts empty", func() {
		snap := stats.Snapshot()
		Expect(snap.TotalRequests).To(BeZero())
		Expect(snap.Services).To(BeEmpty())
	})

	It("counts attempts separately from completions", func() {
		stats.Begin()
		stats.Begin()
		stats.Complete("api", 10*time.Millisecond, true)

		snap := stats.Snapshot()
		Expect(snap.TotalRequests).To(Equal(int64(2)))
		Expect(snap.SuccessfulRequests).To(Equal(int64(1)))
		Expect(snap.FailedRequests).To(BeZero())
	})

	It("keeps incremental averages per service and globally", func() {
		for _, d := range []time.Duration{100, 200, 300} {
			stats.Begin()
			stats.Complete("api", d*time.Millisecond, true)
		}
		stats.Begin()
		stats.Complete("documents", 400*time.Millisecond, false)

		snap := stats.Snapshot()
		Expect(snap.Services["api"].Requests).To(Equal(int64(3)))
		Expect(snap.Services["api"].Errors).To(BeZero())
		Expect(snap.Services["api"].AvgResponseTimeMs).To(BeNumerically("~", 200, 1e-9))
		Expect(snap.Services["documents"].Errors).To(Equal(int64(1)))
		Expect(snap.FailedRequests).To(Equal(int64(1)))
		Expect(snap.GlobalAvgResponseTimeMs).To(BeNumerically("~", 250, 1e-9))
	})

	It("stays consistent under concurrent dispatches", func() {
		const k = 200
		var wg sync.WaitGroup
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stats.Begin()
				if i%2 == 0 {
					stats.Complete("api", time.Duration(10+i%50)*time.Millisecond, i%4 != 0)
				} else {
					stats.Complete("documents", time.Duration(100+i%50)*time.Millisecond, true)
				}
			}(i)
		}
		wg.Wait()

		snap := stats.Snapshot()
		Expect(snap.TotalRequests).To(Equal(int64(k)))
		Expect(snap.SuccessfulRequests + snap.FailedRequests).To(Equal(int64(k)))
		Expect(snap.FailedRequests).To(Equal(int64(k / 4)))

		api, documents := snap.Services["api"], snap.Services["documents"]
		Expect(api.Requests).To(Equal(int64(k / 2)))
		Expect(api.Errors).To(Equal(int64(k / 4)))
		Expect(api.AvgResponseTimeMs).To(BeNumerically(">=", 10-1e-6))
		Expect(api.AvgResponseTimeMs).To(BeNumerically("<=", 59+1e-6))
		Expect(documents.Requests).To(Equal(int64(k / 2)))
		Expect(documents.Errors).To(BeZero())
		Expect(documents.AvgResponseTimeMs).To(BeNumerically(">=", 100-1e-6))
		Expect(documents.AvgResponseTimeMs).To(BeNumerically("<=", 149+1e-6))
		Expect(snap.GlobalAvgResponseTimeMs).To(BeNumerically(">=", 10-1e-6))
		Expect(snap.GlobalAvgResponseTimeMs).To(BeNumerically("<=", 149+1e-6))
	})

	Describe("Handler", func() {
		It("serves the snapshot, health and breaker states as JSON", func() {
			stats.Begin()
			stats.Complete("api", time.Millisecond, true)
			checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			w := httptest.NewRecorder()
			stats.Handler(
				fixedHealth{"api": {Healthy: true, LastCheck: checked}},
				fixedBreakers{"api": "closed"},
			).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var body struct {
				Stats    metrics.Snapshot                 `json:"stats"`
				Health   map[string]metrics.ServiceHealth `json:"health"`
				Breakers map[string]string                `json:"breakers"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Stats.TotalRequests).To(Equal(int64(1)))
			Expect(body.Health).To(HaveKey("api"))
			Expect(body.Health["api"].Healthy).To(BeTrue())
			Expect(body.Health["api"].LastCheck.Equal(checked)).To(BeTrue())
			Expect(body.Breakers).To(HaveKeyWithValue("api", "closed"))
		})

		It("omits the breakers when none are configured", func() {
			w := httptest.NewRecorder()
			stats.Handler(nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			var body map[string]json.RawMessage
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKey("stats"))
			Expect(body).NotTo(HaveKey("breakers"))
			Expect(body).NotTo(HaveKey("health"))
		})
	})
})
