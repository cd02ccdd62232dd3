// Package relay assembles the worker fleet: it starts N independent proxy
// workers, spreads inbound requests across them, applies configuration
// swaps fleet-wide, and coordinates shutdown.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flemzord/mcrelay/internal/proxy"
	"github.com/flemzord/mcrelay/pkg/protocol"
)

// DefaultWorkerCount is the number of workers when no size is specified.
const DefaultWorkerCount = 4

// ConfigFactory compiles one routing-config snapshot for one worker. It is
// called once per worker on every (re)configuration, so each worker owns a
// private snapshot and teardown stays worker-local.
type ConfigFactory func(workerID int) (*proxy.Config, error)

// Options configures an Instance.
type Options struct {
	Workers int
	Proxy   proxy.Options

	// Version is the package identification string served by version
	// requests.
	Version string

	// EnableServerShutdown allows shutdown requests from the wire to stop
	// the instance.
	EnableServerShutdown bool

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkerCount
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	d := proxy.DefaultOptions()
	if o.Proxy.ClientQueueSize <= 0 {
		o.Proxy.ClientQueueSize = d.ClientQueueSize
	}
	if o.Proxy.MaxNoFlushEventLoops <= 0 {
		o.Proxy.MaxNoFlushEventLoops = d.MaxNoFlushEventLoops
	}
	return o
}

// Instance owns the worker fleet.
type Instance struct {
	opts    Options
	logger  *slog.Logger
	proxies []*proxy.Proxy

	next      atomic.Uint64
	shutdown  atomic.Bool
	startedAt time.Time
}

// New builds the fleet, compiling one config snapshot per worker via the
// factory. Workers are not started yet; call Start.
func New(opts Options, factory ConfigFactory) (*Instance, error) {
	opts = opts.withDefaults()
	inst := &Instance{
		opts:   opts,
		logger: opts.Logger,
	}

	for id := 0; id < opts.Workers; id++ {
		cfg, err := factory(id)
		if err != nil {
			return nil, fmt.Errorf("relay: compiling config for worker %d: %w", id, err)
		}
		var onShutdown func()
		if opts.EnableServerShutdown {
			onShutdown = inst.requestShutdown
		}
		inst.proxies = append(inst.proxies, proxy.New(proxy.ProxyConfig{
			ID:                id,
			Options:           opts.Proxy,
			Config:            cfg,
			Version:           opts.Version,
			OnShutdownRequest: onShutdown,
			Logger:            opts.Logger,
		}))
	}
	return inst, nil
}

// Start launches every worker's event loop.
func (i *Instance) Start() {
	i.startedAt = time.Now()
	for _, p := range i.proxies {
		p.Start()
	}
	i.logger.Info("relay: started", "workers", len(i.proxies))
}

// Dispatch admits one parsed request into the fleet, round-robin across
// workers. The sink receives exactly one reply. Called by acceptor threads.
func (i *Instance) Dispatch(req protocol.Request, priority protocol.Priority, sink protocol.ReplySink) error {
	if i.shutdown.Load() {
		return ErrShuttingDown
	}
	rc := proxy.NewRequestContext(req, priority, sink)
	worker := i.proxies[i.next.Add(1)%uint64(len(i.proxies))]
	worker.DispatchRequest(rc)
	return nil
}

// Worker returns the worker with the given index, for transports that pin
// connections to a worker.
func (i *Instance) Worker(id int) (*proxy.Proxy, error) {
	if id < 0 || id >= len(i.proxies) {
		return nil, fmt.Errorf("relay: no worker %d", id)
	}
	return i.proxies[id], nil
}

// Workers returns the fleet size.
func (i *Instance) Workers() int {
	return len(i.proxies)
}

// Uptime reports time since Start.
func (i *Instance) Uptime() time.Duration {
	if i.startedAt.IsZero() {
		return 0
	}
	return time.Since(i.startedAt)
}

// Reconfigure compiles and swaps a fresh config snapshot into every
// worker. Each displaced snapshot travels back to its worker's loop for
// teardown; in-flight requests keep the snapshot they were admitted under.
// Every snapshot is compiled before any is swapped, so a compile failure
// leaves all workers on their current config.
func (i *Instance) Reconfigure(factory ConfigFactory) error {
	cfgs := make([]*proxy.Config, len(i.proxies))
	for idx, p := range i.proxies {
		cfg, err := factory(p.ID())
		if err != nil {
			return fmt.Errorf("relay: recompiling config for worker %d: %w", p.ID(), err)
		}
		cfgs[idx] = cfg
	}
	for idx, p := range i.proxies {
		p.ReplaceConfig(cfgs[idx])
	}
	i.logger.Info("relay: configuration swapped", "workers", len(i.proxies))
	return nil
}

// StatsSnapshots collects each worker's counter snapshot.
func (i *Instance) StatsSnapshots() []proxy.Snapshot {
	out := make([]proxy.Snapshot, 0, len(i.proxies))
	for _, p := range i.proxies {
		out = append(out, p.StatsSnapshot())
	}
	return out
}

// ShuttingDown reports whether shutdown has been requested.
func (i *Instance) ShuttingDown() bool {
	return i.shutdown.Load()
}

// requestShutdown flags shutdown without blocking; used by the wire-level
// shutdown handler, which runs on a worker loop.
func (i *Instance) requestShutdown() {
	i.shutdown.Store(true)
}

// Shutdown stops accepting requests, wakes every worker so it observes the
// flag, and waits for loops to tear down or ctx to expire.
func (i *Instance) Shutdown(ctx context.Context) error {
	i.shutdown.Store(true)
	i.logger.Info("relay: stopping")

	for _, p := range i.proxies {
		p.Shutdown()
	}
	for _, p := range i.proxies {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return fmt.Errorf("relay: shutdown: %w", ctx.Err())
		}
	}
	i.logger.Info("relay: stopped")
	return nil
}
