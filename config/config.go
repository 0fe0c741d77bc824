package config

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// PathEnv names the environment variable holding an explicit config file path.
const PathEnv = "ROUTER_CONFIG"

// Handler tags accepted in the static section.
const (
	HandlerHealth  = "health"
	HandlerHealthz = "healthz"
	HandlerReady   = "ready"
	HandlerRoutes  = "routes"
	HandlerMetrics = "metrics"
	HandlerStatus  = "status"
)

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
	H2C          bool   `mapstructure:"h2c"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
	Timeout  string `mapstructure:"timeout"`
}

type CircuitBreakerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MaxFailures int    `mapstructure:"max_failures"`
	OpenTimeout string `mapstructure:"open_timeout"`
}

type ProxyConfig struct {
	MaxBodyBytes        int64                `mapstructure:"max_body_bytes"`
	MaxIdleConnsPerHost int                  `mapstructure:"max_idle_conns_per_host"`
	RetryBackoff        string               `mapstructure:"retry_backoff"`
	CircuitBreaker      CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type VersionsConfig struct {
	Current    string   `mapstructure:"current"`
	Supported  []string `mapstructure:"supported"`
	Deprecated []string `mapstructure:"deprecated"`
	Default    string   `mapstructure:"default"`
}

type ServiceConfig struct {
	Protocol        string `mapstructure:"protocol"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	HealthCheckPath string `mapstructure:"health_check_path"`
	TimeoutMs       int    `mapstructure:"timeout_ms"`
	Retries         int    `mapstructure:"retries"`
}

type RewriteConfig struct {
	Match   string `mapstructure:"match"`
	Replace string `mapstructure:"replace"`
}

type RouteConfig struct {
	Pattern           string          `mapstructure:"pattern"`
	Target            string          `mapstructure:"target"`
	Methods           []string        `mapstructure:"methods"`
	PathRewrite       []RewriteConfig `mapstructure:"path_rewrite"`
	VersionValidation bool            `mapstructure:"version_validation"`
}

type LegacyConfig struct {
	Path           string   `mapstructure:"path"`
	RedirectTarget string   `mapstructure:"redirect_target"`
	Methods        []string `mapstructure:"methods"`
	Status         int      `mapstructure:"status"`
}

type StaticConfig struct {
	Path    string `mapstructure:"path"`
	Handler string `mapstructure:"handler"`
}

type Config struct {
	Server      ServerConfig             `mapstructure:"server"`
	Logging     LoggingConfig            `mapstructure:"logging"`
	HealthCheck HealthCheckConfig        `mapstructure:"health_check"`
	Proxy       ProxyConfig              `mapstructure:"proxy"`
	Versions    VersionsConfig           `mapstructure:"versions"`
	Services    map[string]ServiceConfig `mapstructure:"services"`
	Routes      map[string][]RouteConfig `mapstructure:"routes"`
	Dynamic     []RouteConfig            `mapstructure:"dynamic"`
	Legacy      []LegacyConfig           `mapstructure:"legacy"`
	Static      []StaticConfig           `mapstructure:"static"`
}

// Load reads the configuration from the file named by ROUTER_CONFIG, or from
// config.yaml in ./config or the working directory.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(PathEnv))
}

// LoadFile reads the configuration from path. An empty path searches the
// default locations; a missing default file leaves defaults and environment
// variables in effect.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if cfg.Versions.Default == "" {
		cfg.Versions.Default = cfg.Versions.Current
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.h2c", false)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("health_check.interval", "30s")
	v.SetDefault("health_check.timeout", "5s")
	v.SetDefault("proxy.max_body_bytes", 10<<20)
	v.SetDefault("proxy.max_idle_conns_per_host", 10)
	v.SetDefault("proxy.retry_backoff", "100ms")
	v.SetDefault("proxy.circuit_breaker.enabled", false)
	v.SetDefault("proxy.circuit_breaker.max_failures", 5)
	v.SetDefault("proxy.circuit_breaker.open_timeout", "30s")
	v.SetDefault("versions.current", "v1")
	v.SetDefault("versions.supported", []string{"v1"})
}

// Validate checks every section. Route targets must name a configured
// service.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&hc.Timeout, validation.By(validatePositiveDuration)),
				)
			}),
		),
		validation.Field(&c.Proxy,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				cb := pc.CircuitBreaker
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.MaxBodyBytes, validation.Min(int64(1))),
					validation.Field(&pc.MaxIdleConnsPerHost, validation.Min(1)),
					validation.Field(&pc.RetryBackoff, validation.By(validateDuration)),
					validation.Field(&pc.CircuitBreaker, validation.By(func(interface{}) error {
						return validation.ValidateStruct(&cb,
							validation.Field(&cb.MaxFailures, validation.When(cb.Enabled, validation.Required, validation.Min(1))),
							validation.Field(&cb.OpenTimeout, validation.When(cb.Enabled, validation.Required), validation.By(validatePositiveDuration)),
						)
					})),
				)
			}),
		),
		validation.Field(&c.Versions,
			validation.By(func(interface{}) error {
				return errors.Join(c.VersionPolicy().Validate()...)
			}),
		),
		validation.Field(&c.Services,
			validation.Required,
			validation.By(validateServices),
		),
		validation.Field(&c.Routes,
			validation.By(func(value interface{}) error {
				errs := validation.Errors{}
				for version, routes := range c.Routes {
					if err := c.validateRoutes(routes); err != nil {
						errs[version] = err
					}
				}
				return errs.Filter()
			}),
		),
		validation.Field(&c.Dynamic,
			validation.By(func(interface{}) error {
				return c.validateRoutes(c.Dynamic)
			}),
		),
		validation.Field(&c.Legacy,
			validation.Each(validation.By(validateLegacy)),
		),
		validation.Field(&c.Static,
			validation.Each(validation.By(validateStatic)),
		),
	)
}

func validateServices(value interface{}) error {
	services, ok := value.(map[string]ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a map of services")
	}

	errs := validation.Errors{}
	for name, sc := range services {
		if err := sc.descriptor(name).Validate(); err != nil {
			errs[name] = err
		}
	}
	return errs.Filter()
}

func (c *Config) validateRoutes(routes []RouteConfig) error {
	errs := validation.Errors{}
	for i, rc := range routes {
		err := validation.ValidateStruct(&rc,
			validation.Field(&rc.Pattern, validation.Required, validation.By(validatePath)),
			validation.Field(&rc.Target, validation.Required, validation.By(func(value interface{}) error {
				if _, ok := c.Services[strings.ToLower(rc.Target)]; !ok {
					return validation.NewError("validation_unknown_service", "must name a configured service")
				}
				return nil
			})),
			validation.Field(&rc.Methods, validation.Each(validation.By(validateMethod))),
			validation.Field(&rc.PathRewrite, validation.Each(validation.By(func(value interface{}) error {
				rw, _ := value.(RewriteConfig)
				return validation.Validate(rw.Match, validation.Required)
			}))),
		)
		if err != nil {
			errs[strconv.Itoa(i)] = err
		}
	}
	return errs.Filter()
}

func validateLegacy(value interface{}) error {
	lc, ok := value.(LegacyConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a LegacyConfig")
	}
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Path, validation.Required, validation.By(validatePath)),
		validation.Field(&lc.RedirectTarget, validation.Required),
		validation.Field(&lc.Methods, validation.Each(validation.By(validateMethod))),
		validation.Field(&lc.Status, validation.In(
			http.StatusMovedPermanently,
			http.StatusFound,
			http.StatusSeeOther,
			http.StatusTemporaryRedirect,
			http.StatusPermanentRedirect,
		)),
	)
}

func validateStatic(value interface{}) error {
	sc, ok := value.(StaticConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a StaticConfig")
	}
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Path, validation.Required, validation.By(validatePath)),
		validation.Field(&sc.Handler,
			validation.Required,
			validation.In(HandlerHealth, HandlerHealthz, HandlerReady, HandlerRoutes, HandlerMetrics, HandlerStatus),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if durationStr == "" {
		return nil
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

// validatePositiveDuration is validateDuration for values that drive a ticker
// or a timeout and must therefore be greater than zero.
func validatePositiveDuration(value interface{}) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	durationStr, _ := value.(string)
	if durationStr == "" {
		return nil
	}
	if d, _ := time.ParseDuration(durationStr); d <= 0 {
		return validation.NewError("validation_nonpositive_duration", "must be greater than zero")
	}

	return nil
}

func validatePath(value interface{}) error {
	path, _ := value.(string)
	if !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_invalid_path", "must start with /")
	}
	return nil
}

func validateMethod(value interface{}) error {
	method, _ := value.(string)
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return nil
	}
	return validation.NewError("validation_invalid_method", "must be an HTTP method")
}

// VersionPolicy returns the configured version policy.
func (c *Config) VersionPolicy() routing.VersionPolicy {
	def := c.Versions.Default
	if def == "" {
		def = c.Versions.Current
	}
	return routing.VersionPolicy{
		Current:    c.Versions.Current,
		Supported:  c.Versions.Supported,
		Deprecated: c.Versions.Deprecated,
		Default:    def,
	}
}

func (sc ServiceConfig) descriptor(name string) backend.ServiceDescriptor {
	return backend.ServiceDescriptor{
		Name:            strings.ToLower(name),
		Protocol:        sc.Protocol,
		Host:            sc.Host,
		Port:            sc.Port,
		HealthCheckPath: sc.HealthCheckPath,
		TimeoutMs:       sc.TimeoutMs,
		Retries:         sc.Retries,
	}
}

// Descriptors returns the configured services sorted by name.
func (c *Config) Descriptors() []backend.ServiceDescriptor {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	descs := make([]backend.ServiceDescriptor, 0, len(names))
	for _, name := range names {
		descs = append(descs, c.Services[name].descriptor(name))
	}
	return descs
}

// Pool returns the pooled transport settings.
func (c *Config) Pool() backend.PoolConfig {
	return backend.PoolConfig{
		MaxIdleConnsPerHost: c.Proxy.MaxIdleConnsPerHost,
		RetryBackoff:        parseDuration(c.Proxy.RetryBackoff),
	}
}

// TableConfig converts the route sections into routing input.
func (c *Config) TableConfig() routing.TableConfig {
	tc := routing.TableConfig{
		Versions: c.VersionPolicy(),
		Static:   make(map[string][]routing.RouteDefinition, len(c.Routes)),
	}

	for version, routes := range c.Routes {
		for _, rc := range routes {
			tc.Static[version] = append(tc.Static[version], rc.definition())
		}
	}
	for _, rc := range c.Dynamic {
		tc.Dynamic = append(tc.Dynamic, rc.definition())
	}
	for _, lc := range c.Legacy {
		tc.Legacy = append(tc.Legacy, routing.LegacyRule{
			Path:    lc.Path,
			Target:  lc.RedirectTarget,
			Methods: lc.Methods,
			Status:  lc.Status,
		})
	}
	for _, sc := range c.Static {
		tc.Local = append(tc.Local, routing.LocalPath{Path: sc.Path, Handler: sc.Handler})
	}

	return tc
}

func (rc RouteConfig) definition() routing.RouteDefinition {
	def := routing.RouteDefinition{
		Pattern:                   rc.Pattern,
		Target:                    strings.ToLower(rc.Target),
		Methods:                   rc.Methods,
		RequiresVersionValidation: rc.VersionValidation,
	}
	for _, rw := range rc.PathRewrite {
		def.Rewrites = append(def.Rewrites, routing.RewriteRule{Match: rw.Match, Replace: rw.Replace})
	}
	return def
}

// Duration accessors. Values are validated by Load, so parse errors yield zero
// and callers fall back to their defaults.

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return parseDuration(s.ReadTimeout), parseDuration(s.WriteTimeout), parseDuration(s.IdleTimeout)
}

func (h HealthCheckConfig) IntervalDuration() time.Duration {
	return parseDuration(h.Interval)
}

func (h HealthCheckConfig) TimeoutDuration() time.Duration {
	return parseDuration(h.Timeout)
}

func (cb CircuitBreakerConfig) OpenTimeoutDuration() time.Duration {
	return parseDuration(cb.OpenTimeout)
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
