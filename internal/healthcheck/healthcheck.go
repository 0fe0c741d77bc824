package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/metrics"
)

const (
	// CheckTimeout bounds every health request.
	CheckTimeout = 5 * time.Second

	// DefaultInterval is used by Run when the interval is not positive.
	DefaultInterval = 30 * time.Second
)

// Monitor checks the services of a registry.
type Monitor struct {
	registry *backend.Registry
	client   *http.Client
	logger   *slog.Logger
	exporter *metrics.Exporter
}

// NewMonitor creates a monitor. exporter may be nil.
func NewMonitor(registry *backend.Registry, logger *slog.Logger, exporter *metrics.Exporter) *Monitor {
	return &Monitor{
		registry: registry,
		client: &http.Client{
			Timeout: CheckTimeout,
		},
		logger:   logger,
		exporter: exporter,
	}
}

// WithCheckTimeout overrides CheckTimeout. Non-positive values are ignored.
func (m *Monitor) WithCheckTimeout(d time.Duration) *Monitor {
	if d > 0 {
		m.client.Timeout = d
	}
	return m
}

// IsHealthy sends GET {baseURL}{healthCheckPath} and reports whether the
// service answered 2xx. Unknown services and transport errors are unhealthy.
func (m *Monitor) IsHealthy(ctx context.Context, name string) bool {
	svc, ok := m.registry.Get(name)
	if !ok {
		return false
	}
	return m.check(ctx, svc)
}

func (m *Monitor) check(ctx context.Context, svc *backend.Service) bool {
	healthURL := *svc.URL()
	healthURL.Path = svc.Descriptor().HealthPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false
	}

	res, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("Health check failed",
			slog.String("service", svc.Name()),
			slog.Any("err", err))
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode >= 200 && res.StatusCode < 300
}

// CheckAll checks every service concurrently and records the results on the
// services.
func (m *Monitor) CheckAll(ctx context.Context) map[string]bool {
	var (
		mutex   sync.Mutex
		results = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range m.registry.Services() {
		g.Go(func() error {
			healthy := m.check(gctx, svc)
			m.record(svc, healthy)

			mutex.Lock()
			results[svc.Name()] = healthy
			mutex.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// LastKnown returns the health recorded by the most recent check of each
// service, with the time of that check.
func (m *Monitor) LastKnown() map[string]metrics.ServiceHealth {
	out := make(map[string]metrics.ServiceHealth)
	for _, svc := range m.registry.Services() {
		out[svc.Name()] = metrics.ServiceHealth{
			Healthy:   svc.IsHealthy(),
			LastCheck: svc.LastCheck(),
		}
	}
	return out
}

// Run checks all services immediately and then every interval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.CheckAll(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health check stopped")
			return

		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

func (m *Monitor) record(svc *backend.Service, healthy bool) {
	m.exporter.SetHealth(svc.Name(), healthy)

	if !svc.SetHealthy(healthy) {
		return
	}
	if healthy {
		m.logger.Info("Service is back up",
			slog.String("service", svc.Name()),
			slog.String("url", svc.URL().String()))
	} else {
		m.logger.Warn("Service is down",
			slog.String("service", svc.Name()),
			slog.String("url", svc.URL().String()))
	}
}
