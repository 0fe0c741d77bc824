package routing

import (
	"errors"
	"fmt"
)

// Sentinel errors for table construction and resolution.
var (
	ErrInvalidPattern  = errors.New("invalid route pattern")
	ErrInvalidRewrite  = errors.New("invalid path rewrite")
	ErrUnknownService  = errors.New("unknown service")
	ErrInvalidVersions = errors.New("invalid version policy")
)

// UnknownServiceError reports a route whose target is missing from the
// service registry. It is a configuration defect.
type UnknownServiceError struct {
	Service string
	Pattern string
}

// Error implements the error interface.
func (e *UnknownServiceError) Error() string {
	if e.Pattern != "" {
		return fmt.Sprintf("route %s targets unknown service %q", e.Pattern, e.Service)
	}
	return fmt.Sprintf("unknown service %q", e.Service)
}

// Is reports whether target is ErrUnknownService or another UnknownServiceError.
func (e *UnknownServiceError) Is(target error) bool {
	if target == ErrUnknownService {
		return true
	}
	_, ok := target.(*UnknownServiceError)
	return ok
}
