package backend

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"
)

const (
	defaultMaxIdleConnsPerHost = 10
	defaultRetryBackoff        = 100 * time.Millisecond
)

// PoolConfig tunes the pooled transport shared by all requests to a service.
type PoolConfig struct {
	MaxIdleConnsPerHost int
	RetryBackoff        time.Duration
}

type errorSlotKey struct{}

// Service is a registered upstream with its reverse proxy and health flag.
type Service struct {
	desc      ServiceDescriptor
	target    *url.URL
	transport *http.Transport
	proxy     *httputil.ReverseProxy
	mutex     sync.Mutex
	isHealthy bool
	lastCheck time.Time
}

func newService(desc ServiceDescriptor, pool PoolConfig, logger *slog.Logger) *Service {
	if pool.MaxIdleConnsPerHost <= 0 {
		pool.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if pool.RetryBackoff <= 0 {
		pool.RetryBackoff = defaultRetryBackoff
	}

	target := &url.URL{
		Scheme: desc.protocol(),
		Host:   net.JoinHostPort(desc.Host, desc.Port),
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   pool.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	s := &Service{
		desc:      desc,
		target:    target,
		transport: transport,
		isHealthy: true,
	}

	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = target.Scheme
			pr.Out.URL.Host = target.Host
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		Transport: &retryTransport{
			base:    transport,
			retries: desc.Retries,
			backoff: pool.RetryBackoff,
			service: desc.Name,
			logger:  logger,
		},
		FlushInterval: -1,
		ErrorHandler:  s.handleError,
	}

	return s
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.desc.Name
}

// Descriptor returns the configuration the service was built from.
func (s *Service) Descriptor() ServiceDescriptor {
	return s.desc
}

// URL returns the service base URL.
func (s *Service) URL() *url.URL {
	return s.target
}

// Timeout returns the per-request upstream timeout.
func (s *Service) Timeout() time.Duration {
	return s.desc.Timeout()
}

// ServeProxy forwards r, whose URL path must already be the upstream path,
// over the pooled transport. When the upstream cannot be reached nothing is
// written to w and the transport error is returned.
func (s *Service) ServeProxy(w http.ResponseWriter, r *http.Request) error {
	var proxyErr error
	ctx := context.WithValue(r.Context(), errorSlotKey{}, &proxyErr)
	s.proxy.ServeHTTP(w, r.WithContext(ctx))
	return proxyErr
}

func (s *Service) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if slot, ok := r.Context().Value(errorSlotKey{}).(*error); ok {
		*slot = err
		return
	}
	w.WriteHeader(http.StatusBadGateway)
}

// IsHealthy returns the result of the last health check. Services start
// healthy.
func (s *Service) IsHealthy() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.isHealthy
}

// SetHealthy records a health check result.
// Returns true if the status changed, false if it was already in that state.
func (s *Service) SetHealthy(healthy bool) (changed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastCheck = time.Now()
	if s.isHealthy == healthy {
		return false
	}

	s.isHealthy = healthy
	return true
}

// LastCheck returns when the health flag was last written.
func (s *Service) LastCheck() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastCheck
}

// CloseIdleConnections drops pooled connections.
func (s *Service) CloseIdleConnections() {
	s.transport.CloseIdleConnections()
}
