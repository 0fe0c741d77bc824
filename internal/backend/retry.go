package backend

import (
	"errors"
	"log/slog"
	"net/http"
	"syscall"
	"time"
)

// retryTransport retries body-less idempotent requests that were refused at
// connect time, waiting backoff*attempt between tries.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
	service string
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if t.retries <= 0 || !retryable(req) {
		return res, err
	}

	for attempt := 1; attempt <= t.retries && errors.Is(err, syscall.ECONNREFUSED); attempt++ {
		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		if t.logger != nil {
			t.logger.Debug("Retrying refused connection",
				slog.String("service", t.service),
				slog.Int("attempt", attempt))
		}
		res, err = t.base.RoundTrip(req)
	}

	return res, err
}

func retryable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		return false
	}
	return req.Body == nil || req.Body == http.NoBody
}
