package backend

import (
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"

	DefaultHealthCheckPath = "/health"
	DefaultTimeout         = 30 * time.Second
)

// ServiceDescriptor describes one upstream service. It is immutable after boot.
type ServiceDescriptor struct {
	Name            string `json:"name"`
	Protocol        string `json:"protocol"`
	Host            string `json:"host"`
	Port            string `json:"port"`
	HealthCheckPath string `json:"health_check_path"`
	TimeoutMs       int    `json:"timeout_ms"`
	Retries         int    `json:"retries"`
}

// BaseURL returns protocol://host:port.
func (d ServiceDescriptor) BaseURL() string {
	return d.protocol() + "://" + net.JoinHostPort(d.Host, d.Port)
}

// Timeout returns the per-request upstream timeout.
func (d ServiceDescriptor) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// HealthPath returns the health check path, defaulting to /health.
func (d ServiceDescriptor) HealthPath() string {
	if d.HealthCheckPath == "" {
		return DefaultHealthCheckPath
	}
	if !strings.HasPrefix(d.HealthCheckPath, "/") {
		return "/" + d.HealthCheckPath
	}
	return d.HealthCheckPath
}

func (d ServiceDescriptor) protocol() string {
	if d.Protocol == "" {
		return ProtocolHTTP
	}
	return strings.ToLower(d.Protocol)
}

// Validate checks that the descriptor can be dialed.
func (d ServiceDescriptor) Validate() error {
	d.Protocol = d.protocol()
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Host, validation.Required, is.Host),
		validation.Field(&d.Port, validation.Required, is.Port),
		validation.Field(&d.Protocol, validation.In(ProtocolHTTP, ProtocolHTTPS)),
		validation.Field(&d.TimeoutMs, validation.Min(0)),
		validation.Field(&d.Retries, validation.Min(0)),
	)
}
