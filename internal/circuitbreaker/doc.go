// Package circuitbreaker keeps one breaker per upstream service.
//
// A breaker opens after a run of consecutive upstream failures and rejects
// calls until the open timeout elapses, then lets a single trial call through:
//
//   - CLOSED: normal operation, calls pass through
//   - OPEN: service failing, calls rejected with ErrOpen
//   - HALF-OPEN: one trial call decides between CLOSED and OPEN
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second, logger)
//	err := registry.Execute("api", func() error {
//	    return forward()
//	})
//	if circuitbreaker.IsOpen(err) {
//	    // answer 503 without calling the service
//	}
package circuitbreaker
