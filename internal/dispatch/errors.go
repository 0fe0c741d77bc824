package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/angeloszaimis/proxy-router/internal/circuitbreaker"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// Kind classifies a failed forward.
type Kind string

const (
	KindUnknownService Kind = "unknown_service"
	KindUnavailable    Kind = "unavailable"
	KindTimeout        Kind = "timeout"
	KindProtocol       Kind = "protocol"
	KindClientAbort    Kind = "client_abort"
)

// Sentinel errors, one per kind.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamTimeout     = errors.New("upstream request timed out")
	ErrUpstreamProtocol    = errors.New("upstream protocol error")
	ErrClientAbort         = errors.New("client closed request")
	ErrUnknownService      = routing.ErrUnknownService
)

// Error is a classified dispatch failure.
type Error struct {
	Kind    Kind
	Service string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dispatch %s to %s: %v", e.Kind, e.Service, e.Cause)
	}
	return fmt.Sprintf("dispatch %s to %s", e.Kind, e.Service)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Status returns the HTTP status sent to the client. Client aborts have none.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindClientAbort:
		return 0
	default:
		return http.StatusBadGateway
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownService:
		return ErrUnknownService
	case KindUnavailable:
		return ErrUpstreamUnavailable
	case KindTimeout:
		return ErrUpstreamTimeout
	case KindClientAbort:
		return ErrClientAbort
	default:
		return ErrUpstreamProtocol
	}
}

// classify maps a forward error to a Kind. inbound is the client's context,
// outbound the one carrying the service timeout.
func classify(err error, inbound, outbound context.Context) Kind {
	if inbound.Err() != nil {
		return KindClientAbort
	}
	if circuitbreaker.IsOpen(err) {
		return KindUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(outbound.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindUnavailable
	}
	return KindProtocol
}
