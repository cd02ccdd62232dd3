// Package app provides the shared entry point wiring for the mcrelay
// binary: configuration, logging, tracing, the worker fleet, the admin
// surface, hot reload, and signal handling.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/flemzord/mcrelay/internal/admin"
	"github.com/flemzord/mcrelay/internal/config"
	"github.com/flemzord/mcrelay/internal/maintenance"
	"github.com/flemzord/mcrelay/internal/relay"
	"github.com/flemzord/mcrelay/internal/reload"
	"github.com/flemzord/mcrelay/pkg/protocol"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// Route overrides the routing program. Nil uses the built-in null
	// route.
	Route protocol.RouteHandle
}

// PackageString renders the identification string served by version
// requests.
func (p RunParams) PackageString() string {
	return fmt.Sprintf("mcrelay %s", p.Version)
}

// Run loads configuration, starts the worker fleet and its supporting
// services, and blocks until a shutdown signal arrives. SIGHUP and
// config-file changes trigger a live configuration swap.
func Run(params RunParams) error {
	cfg, err := config.Load(params.ConfigPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Trace.Enabled {
		shutdownTracing, err := setupTracing(ctx, cfg.Trace.Endpoint)
		if err != nil {
			return fmt.Errorf("app: tracing setup: %w", err)
		}
		defer shutdownTracing()
	}

	route := params.Route
	if route == nil {
		route = relay.NullRoute{}
	}

	compile := func(cfg *config.Config) (relay.ConfigFactory, error) {
		return relay.StaticConfigFactory(route, params.PackageString(), cfg.Flattened()), nil
	}

	factory, err := compile(cfg)
	if err != nil {
		return err
	}

	instance, err := relay.New(relay.Options{
		Workers:              cfg.Workers,
		Proxy:                cfg.ProxyOptions(),
		Version:              params.PackageString(),
		EnableServerShutdown: cfg.EnableServerShutdown,
		Logger:               logger,
	}, factory)
	if err != nil {
		return err
	}
	instance.Start()

	var adminServer *admin.Server
	if cfg.Admin.Addr != "" {
		adminServer = admin.NewServer(admin.Config{
			Addr:        cfg.Admin.Addr,
			BearerToken: cfg.Admin.BearerToken,
		}, instance, logger)
		if err := adminServer.Start(); err != nil {
			return err
		}
	}

	scheduler := maintenance.NewScheduler(logger)
	if err := scheduler.RegisterJob(&maintenance.StatsReportJob{Instance: instance, Logger: logger}); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}

	handler := reload.NewHandler(instance, compile, logger)
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath:   params.ConfigPath,
		PollInterval: cfg.PollInterval(),
	})
	watcher.Start(ctx)
	go handler.Run(ctx, watcher.Events())

	logger.Info("mcrelay started",
		"version", params.Version,
		"workers", instance.Workers(),
		"config", params.ConfigPath,
	)

	waitForShutdown(ctx, instance, handler, params.ConfigPath, logger)

	watcher.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if adminServer != nil {
		if err := adminServer.Stop(shutdownCtx); err != nil {
			logger.Warn("app: admin shutdown", "error", err)
		}
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("app: scheduler shutdown", "error", err)
	}
	return instance.Shutdown(shutdownCtx)
}

// waitForShutdown blocks until SIGINT/SIGTERM or a wire-level shutdown
// request; SIGHUP reloads the config in place.
func waitForShutdown(ctx context.Context, instance *relay.Instance, handler *reload.Handler, configPath string, logger *slog.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	drainPoll := time.NewTicker(500 * time.Millisecond)
	defer drainPoll.Stop()

	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.Info("app: SIGHUP received, reloading configuration")
				if err := handler.HandleReload(ctx, configPath); err != nil {
					logger.Error("app: reload failed, keeping previous config", "error", err)
				}
				continue
			}
			logger.Info("app: shutdown signal received", "signal", sig.String())
			return
		case <-drainPoll.C:
			if instance.ShuttingDown() {
				logger.Info("app: shutdown requested over the wire")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// setupTracing installs a global OTLP/HTTP tracer provider.
func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("mcrelay")),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}
