package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/mcrelay/internal/config"
	"github.com/flemzord/mcrelay/internal/relay"
)

// CompileFunc turns a validated configuration into a per-worker config
// factory. The routing layer supplies it; the handler stays ignorant of how
// route handles are built.
type CompileFunc func(cfg *config.Config) (relay.ConfigFactory, error)

// Handler reloads the relay configuration and swaps it into every worker.
// A failed reload leaves the running configuration untouched.
type Handler struct {
	instance *relay.Instance
	compile  CompileFunc
	logger   *slog.Logger
}

// NewHandler creates a reload handler.
func NewHandler(instance *relay.Instance, compile CompileFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{instance: instance, compile: compile, logger: logger}
}

// HandleReload loads a fresh config from disk, validates it, compiles the
// routing snapshot, and swaps it fleet-wide.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return h.handleReload(ctx, cfg)
}

// HandleReloadFromConfig swaps a pre-loaded, already-validated config. The
// caller is responsible for calling config.Validate first.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	return h.handleReload(ctx, cfg)
}

func (h *Handler) handleReload(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	factory, err := h.compile(cfg)
	if err != nil {
		return fmt.Errorf("compiling routing config: %w", err)
	}
	if err := h.instance.Reconfigure(factory); err != nil {
		return fmt.Errorf("swapping config: %w", err)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}

// Run consumes watcher events until ctx is cancelled, reloading on each.
// Reload failures are logged, not fatal.
func (h *Handler) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.HandleReload(ctx, ev.ConfigPath); err != nil {
				h.logger.Error("reload: config swap failed, keeping previous config", "error", err)
			}
		}
	}
}
