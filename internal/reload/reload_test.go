package reload

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/mcrelay/internal/config"
	"github.com/flemzord/mcrelay/internal/proxy"
	"github.com/flemzord/mcrelay/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newInstance(t *testing.T, workers int) *relay.Instance {
	t.Helper()
	inst, err := relay.New(relay.Options{
		Workers: workers,
		Version: "mcrelay test",
		Logger:  testLogger(),
	}, relay.StaticConfigFactory(relay.NullRoute{}, "mcrelay test", nil))
	if err != nil {
		t.Fatal(err)
	}
	inst.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = inst.Shutdown(ctx)
	})
	return inst
}

func TestWatcher_EmitsEventOnModification(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcrelay.yaml")
	writeFile(t, path, "workers: 2\n")

	w := NewWatcher(WatcherConfig{ConfigPath: path, PollInterval: 10 * time.Millisecond})
	w.Start(context.Background())
	defer w.Stop()

	// Push the mtime forward explicitly so coarse filesystem clocks
	// cannot hide the change.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		if ev.ConfigPath != path {
			t.Fatalf("event path = %q, want %q", ev.ConfigPath, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no modification event arrived")
	}
}

func TestWatcher_StopBeforeStartIsSafe(t *testing.T) {
	t.Parallel()

	w := NewWatcher(WatcherConfig{ConfigPath: "nonexistent"})
	w.Stop()
	w.Stop()
}

func TestHandler_ReloadSwapsConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcrelay.yaml")
	writeFile(t, path, "workers: 2\n")

	inst := newInstance(t, 2)

	var compiles atomic.Int64
	compile := func(cfg *config.Config) (relay.ConfigFactory, error) {
		compiles.Add(1)
		return func(int) (*proxy.Config, error) {
			return &proxy.Config{Route: relay.NullRoute{}, LoadedAt: time.Now()}, nil
		}, nil
	}

	h := NewHandler(inst, compile, testLogger())
	if err := h.HandleReload(context.Background(), path); err != nil {
		t.Fatalf("HandleReload: %v", err)
	}
	if compiles.Load() != 1 {
		t.Fatalf("compile ran %d times, want 1", compiles.Load())
	}
}

func TestHandler_InvalidConfigKeepsRunning(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcrelay.yaml")
	writeFile(t, path, "workers: -3\n")

	inst := newInstance(t, 1)

	var compiles atomic.Int64
	compile := func(*config.Config) (relay.ConfigFactory, error) {
		compiles.Add(1)
		return nil, nil
	}

	h := NewHandler(inst, compile, testLogger())
	if err := h.HandleReload(context.Background(), path); err == nil {
		t.Fatal("expected validation failure")
	}
	if compiles.Load() != 0 {
		t.Fatal("compile ran for an invalid config")
	}
}
