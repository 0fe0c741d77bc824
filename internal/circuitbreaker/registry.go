package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned by Execute when the breaker rejects the call.
var ErrOpen = gobreaker.ErrOpenState

type Registry struct {
	mutex       sync.RWMutex
	breakers    map[string]*gobreaker.CircuitBreaker
	maxFailures uint32
	openTimeout time.Duration
	logger      *slog.Logger
}

func NewRegistry(maxFailures int, openTimeout time.Duration, logger *slog.Logger) *Registry {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Registry{
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		maxFailures: uint32(maxFailures),
		openTimeout: openTimeout,
		logger:      logger,
	}
}

func (r *Registry) GetBreaker(service string) *gobreaker.CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[service]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[service]; exists {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     r.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if r.logger == nil {
				return
			}
			r.logger.Warn("Circuit breaker state changed",
				slog.String("service", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	r.breakers[service] = cb
	return cb
}

// Execute runs fn through the breaker of service. A nil return from fn is a
// success; any error counts as a failure.
func (r *Registry) Execute(service string, fn func() error) error {
	_, err := r.GetBreaker(service).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Stats returns the state name of every breaker created so far. It is served
// on /status.
func (r *Registry) Stats() map[string]string {
	if r == nil {
		return nil
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State().String()
	}
	return stats
}

// IsOpen reports whether err is a breaker rejection.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
