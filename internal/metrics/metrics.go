package metrics

import (
	"sync"
	"time"
)

type serviceStats struct {
	requests int64
	errors   int64
	avgMs    float64
}

// Stats holds request counters and incremental response time averages.
type Stats struct {
	mutex      sync.Mutex
	total      int64
	successful int64
	failed     int64
	avgMs      float64
	services   map[string]*serviceStats
	startTime  time.Time
}

// Snapshot is a consistent copy of Stats.
type Snapshot struct {
	TotalRequests           int64                      `json:"totalRequests"`
	SuccessfulRequests      int64                      `json:"successfulRequests"`
	FailedRequests          int64                      `json:"failedRequests"`
	GlobalAvgResponseTimeMs float64                    `json:"globalAvgResponseTimeMs"`
	Uptime                  string                     `json:"uptime"`
	Services                map[string]ServiceSnapshot `json:"services"`
}

// ServiceSnapshot holds the per-service counters.
type ServiceSnapshot struct {
	Requests          int64   `json:"requests"`
	Errors            int64   `json:"errors"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

func NewStats() *Stats {
	return &Stats{
		services:  make(map[string]*serviceStats),
		startTime: time.Now(),
	}
}

// Begin counts a dispatch attempt.
func (s *Stats) Begin() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.total++
}

// Complete records a finished forward to service. The per-service entry is
// updated before the global counters, both under the same lock.
func (s *Stats) Complete(service string, duration time.Duration, ok bool) {
	ms := float64(duration) / float64(time.Millisecond)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	svc := s.services[service]
	if svc == nil {
		svc = &serviceStats{}
		s.services[service] = svc
	}
	svc.requests++
	if !ok {
		svc.errors++
	}
	svc.avgMs += (ms - svc.avgMs) / float64(svc.requests)

	if ok {
		s.successful++
	} else {
		s.failed++
	}
	s.avgMs += (ms - s.avgMs) / float64(s.successful+s.failed)
}

func (s *Stats) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snap := Snapshot{
		TotalRequests:           s.total,
		SuccessfulRequests:      s.successful,
		FailedRequests:          s.failed,
		GlobalAvgResponseTimeMs: s.avgMs,
		Uptime:                  time.Since(s.startTime).Round(time.Second).String(),
		Services:                make(map[string]ServiceSnapshot, len(s.services)),
	}

	for name, svc := range s.services {
		snap.Services[name] = ServiceSnapshot{
			Requests:          svc.requests,
			Errors:            svc.errors,
			AvgResponseTimeMs: svc.avgMs,
		}
	}

	return snap
}
