package proxy

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// Config is one immutable snapshot of the routing configuration: the
// compiled route handle tree, the service-info surface, and the set of
// request kinds the route handles accept. A snapshot is shared between the
// worker and every in-flight request that captured it at admission; teardown
// runs after the last sharer releases it.
type Config struct {
	// Route is the compiled routing program.
	Route protocol.RouteHandle

	// Info serves the __mcrouter__. diagnostic namespace. Optional.
	Info *ServiceInfo

	// Routable lists the request kinds the route handle accepts. A nil map
	// means every non-diagnostic kind is routable.
	Routable map[protocol.Kind]bool

	// LoadedAt records when this snapshot was compiled.
	LoadedAt time.Time

	// OnTeardown, if non-nil, runs on the worker goroutine after the last
	// reference is released. Route-graph and destination teardown hangs
	// off this hook.
	OnTeardown func()
}

// KindRoutable reports whether the route handle accepts the given kind.
func (c *Config) KindRoutable(k protocol.Kind) bool {
	if c.Routable != nil {
		return c.Routable[k]
	}
	return !k.NotRateLimited()
}

// sharedConfig pairs a Config with its reference count.
type sharedConfig struct {
	cfg  *Config
	refs atomic.Int64
}

// ConfigHandle is one counted reference to a shared Config. Handles are
// copied freely; Release must be called exactly once per handle.
type ConfigHandle struct {
	s *sharedConfig
}

// Config returns the referenced snapshot.
func (h ConfigHandle) Config() *Config {
	if h.s == nil {
		return nil
	}
	return h.s.cfg
}

// Valid reports whether the handle references a snapshot.
func (h ConfigHandle) Valid() bool {
	return h.s != nil
}

// clone returns a new reference to the same snapshot.
func (h ConfigHandle) clone() ConfigHandle {
	if h.s != nil {
		h.s.refs.Add(1)
	}
	return h
}

// Release drops this reference. The last release runs the snapshot's
// teardown hook on the calling goroutine, so callers route displaced
// handles back to the owning worker before releasing.
func (h ConfigHandle) Release() {
	if h.s == nil {
		return
	}
	if h.s.refs.Add(-1) == 0 && h.s.cfg.OnTeardown != nil {
		h.s.cfg.OnTeardown()
	}
}

// ConfigHolder is the ownership cell for the worker's current Config.
// Readers take counted snapshots concurrently; the reconfiguration path
// replaces the pointer under an exclusive lock. Requests admitted before a
// swap keep their old snapshot for their whole lifetime.
type ConfigHolder struct {
	mu  sync.RWMutex
	cur ConfigHandle
}

// NewConfigHolder creates a holder owning one reference to cfg.
func NewConfigHolder(cfg *Config) *ConfigHolder {
	h := &ConfigHolder{}
	if cfg != nil {
		h.cur = newConfigHandle(cfg)
	}
	return h
}

func newConfigHandle(cfg *Config) ConfigHandle {
	s := &sharedConfig{cfg: cfg}
	s.refs.Store(1)
	return ConfigHandle{s: s}
}

// Snapshot returns a new counted reference to the current snapshot.
// Callers release it when done. Safe from any goroutine.
func (h *ConfigHolder) Snapshot() ConfigHandle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur.clone()
}

// Unsafe returns the current snapshot without taking a reference. The
// pointer is only valid while the caller can prove no swap runs
// concurrently; prefer Snapshot.
func (h *ConfigHolder) Unsafe() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur.Config()
}

// Locked returns the current snapshot and an unlock func, holding the read
// lock until the caller invokes it. Used when several operations must
// observe one consistent snapshot.
func (h *ConfigHolder) Locked() (*Config, func()) {
	h.mu.RLock()
	return h.cur.Config(), h.mu.RUnlock
}

// Swap replaces the current snapshot and returns the displaced handle,
// transferring the holder's reference to the caller.
func (h *ConfigHolder) Swap(cfg *Config) ConfigHandle {
	var next ConfigHandle
	if cfg != nil {
		next = newConfigHandle(cfg)
	}
	h.mu.Lock()
	old := h.cur
	h.cur = next
	h.mu.Unlock()
	return old
}
