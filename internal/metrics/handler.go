package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// ServiceHealth is the result of the most recent health check of a service.
type ServiceHealth struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"lastCheck"`
}

// HealthReporter exposes the last known health of each service.
type HealthReporter interface {
	LastKnown() map[string]ServiceHealth
}

// BreakerReporter exposes the circuit breaker state of each service.
type BreakerReporter interface {
	Stats() map[string]string
}

type status struct {
	Stats    Snapshot                 `json:"stats"`
	Health   map[string]ServiceHealth `json:"health,omitempty"`
	Breakers map[string]string        `json:"breakers,omitempty"`
}

// Handler serves the statistics snapshot together with the last known
// service health and breaker states as JSON. Either reporter may be nil.
func (s *Stats) Handler(health HealthReporter, breakers BreakerReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := status{Stats: s.Snapshot()}
		if health != nil {
			body.Health = health.LastKnown()
		}
		if breakers != nil {
			body.Breakers = breakers.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
