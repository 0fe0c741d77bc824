package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angeloszaimis/proxy-router/config"
	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/circuitbreaker"
	"github.com/angeloszaimis/proxy-router/internal/dispatch"
	"github.com/angeloszaimis/proxy-router/internal/handler"
	"github.com/angeloszaimis/proxy-router/internal/healthcheck"
	"github.com/angeloszaimis/proxy-router/internal/httpserver"
	"github.com/angeloszaimis/proxy-router/internal/metrics"
	"github.com/angeloszaimis/proxy-router/internal/routing"
	"github.com/angeloszaimis/proxy-router/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, log, promRegistry)
	if err != nil {
		log.Error("Invalid routing configuration", slog.Any("err", err))
		os.Exit(1)
	}

	router, err := setupRouter(a, promRegistry)
	if err != nil {
		log.Error("Failed to set up router", slog.Any("err", err))
		os.Exit(1)
	}

	read, write, idle := cfg.Server.Timeouts()
	srv, err := httpserver.New(cfg.Server.Address, router, httpserver.Options{
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
		H2C:          cfg.Server.H2C,
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go a.monitor.Run(monitorCtx, cfg.HealthCheck.IntervalDuration())

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	a.ready.Store(true)
	log.Info("Router listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("services", len(a.registry.Names())),
		slog.String("current_version", cfg.Versions.Current))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		a.ready.Store(false)
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting router", slog.Any("err", err))
			os.Exit(1)
		}
	}

	stopMonitor()
	a.registry.CloseIdleConnections()
}

// app holds the long-lived components shared by the handlers.
type app struct {
	log        *slog.Logger
	cfg        *config.Config
	registry   *backend.Registry
	table      *routing.Table
	resolver   *routing.Resolver
	stats      *metrics.Stats
	exporter   *metrics.Exporter
	monitor    *healthcheck.Monitor
	breakers   *circuitbreaker.Registry
	dispatcher *dispatch.Dispatcher
	ready      atomic.Bool
}

// newApp builds the registry and route table and fails when either is
// invalid. Collectors are registered with reg.
func newApp(cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*app, error) {
	registry := backend.NewRegistry(cfg.Descriptors(), cfg.Pool(), log)

	if errs := registry.Validate(cfg.VersionPolicy()); len(errs) > 0 {
		for _, err := range errs {
			log.Error("Invalid service configuration", slog.Any("err", err))
		}
		return nil, fmt.Errorf("service registry: %w", errors.Join(errs...))
	}

	table, err := routing.NewTable(cfg.TableConfig(), registry)
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}

	a := &app{
		log:      log,
		cfg:      cfg,
		registry: registry,
		table:    table,
		resolver: routing.NewResolver(table, registry),
		stats:    metrics.NewStats(),
		exporter: metrics.NewExporter(reg),
	}

	a.monitor = healthcheck.NewMonitor(registry, log, a.exporter).
		WithCheckTimeout(cfg.HealthCheck.TimeoutDuration())

	if cb := cfg.Proxy.CircuitBreaker; cb.Enabled {
		a.breakers = circuitbreaker.NewRegistry(cb.MaxFailures, cb.OpenTimeoutDuration(), log)
	}

	a.dispatcher = dispatch.NewDispatcher(log, registry, a.stats, a.exporter, a.breakers)

	return a, nil
}

func (a *app) routerHandler() *handler.RouterHandler {
	return handler.NewRouterHandler(a.log, a.resolver, a.dispatcher, nil)
}
