// Package admin exposes the relay's HTTP operations surface: health,
// status, prometheus metrics, and a live stats stream for debugging.
// It is a leaf package — nothing in the core imports it.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/mcrelay/internal/relay"
)

// Config configures the admin server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// BearerToken protects everything except /health when non-empty.
	BearerToken string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) defaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// Server is the admin HTTP server bound to one relay instance.
type Server struct {
	config    Config
	instance  *relay.Instance
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates an admin server for the given instance.
func NewServer(cfg Config, instance *relay.Instance, logger *slog.Logger) *Server {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: cfg, instance: instance, logger: logger}
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", s.handleHealth())

	// Operational endpoints — auth required when a token is configured.
	r.Group(func(r chi.Router) {
		if s.config.BearerToken != "" {
			r.Use(authMiddleware(s.config.BearerToken))
		}
		r.Get("/status", s.handleStatus())
		r.Handle("/metrics", s.metricsHandler())
		r.Get("/debug/stats/ws", s.handleStatsStream())
	})

	return r
}

// metricsHandler exposes the fleet's counters through a dedicated registry.
func (s *Server) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newStatsCollector(s.instance))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.config.Addr)
	if err != nil {
		return errors.New("admin: listen failed: " + err.Error())
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin: server error", "error", err)
		}
	}()

	s.logger.Info("admin: listening", "addr", s.config.Addr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
