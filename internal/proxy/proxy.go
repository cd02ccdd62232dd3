package proxy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// Options holds the core tuning knobs recognized by a worker.
type Options struct {
	// ClientQueueSize is the message queue capacity.
	ClientQueueSize int

	// ClientQueueNoNotifyRate is the baseline notification suppression
	// ratio. Zero disables suppression.
	ClientQueueNoNotifyRate int

	// ClientQueueWaitThresholdUs re-enables notifications when consumer
	// lag exceeds this many microseconds. Zero disables the check.
	ClientQueueWaitThresholdUs int64

	// MaxInflightRequests caps concurrently-processing requests. Zero
	// disables rate-limiting entirely.
	MaxInflightRequests int

	// MaxThrottledRequests caps the waiting queues. Zero disables the cap.
	MaxThrottledRequests int

	// WaitingRequestTimeoutMs bounds how long a request may sit in a
	// waiting queue. Zero disables stamping.
	WaitingRequestTimeoutMs int

	// MaxNoFlushEventLoops bounds how many busy event-loop turns may pass
	// before pending transport writes are flushed anyway.
	MaxNoFlushEventLoops int

	// ResetInactiveConnectionInterval arms the destination map's
	// inactivity sweep. Zero disables it.
	ResetInactiveConnectionInterval time.Duration
}

// DefaultOptions returns the options used when a field is left zero by the
// configuration layer.
func DefaultOptions() Options {
	return Options{
		ClientQueueSize:      defaultQueueCapacity,
		MaxNoFlushEventLoops: defaultMaxNoFlushLoops,
	}
}

// ProxyConfig bundles everything needed to construct a worker.
type ProxyConfig struct {
	ID      int
	Options Options

	// Config is the initial routing configuration snapshot.
	Config *Config

	// Version is the package identification string served by version
	// requests.
	Version string

	// OnShutdownRequest, if set, is invoked when a shutdown request is
	// admitted. Leaving it nil rejects shutdown requests.
	OnShutdownRequest func()

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now NowFunc
}

// Proxy is one worker: it owns a private event loop, the cross-thread
// message queue feeding it, the admission state, the task scheduler, the
// flush coordinator, and the current config snapshot. Many workers run in
// parallel, each independent; the message queue is the only cross-thread
// channel in.
type Proxy struct {
	id      int
	opts    Options
	version string
	logger  *slog.Logger
	nowFn   NowFunc
	tracer  trace.Tracer

	mq     *MessageQueue
	sched  *TaskScheduler
	flush  *FlushCoordinator
	holder *ConfigHolder
	dmap   *DestinationMap
	stats  *Stats

	waiting               waitingQueues
	numRequestsProcessing int
	numRequestsWaiting    int

	onShutdownRequest func()

	loopFns chan func()
	done    chan struct{}

	shuttingDown   atomic.Bool
	beingDestroyed bool
}

// New constructs a worker. Start must be called before any message is sent.
func New(cfg ProxyConfig) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = nowMicros
	}

	p := &Proxy{
		id:                cfg.ID,
		opts:              cfg.Options,
		version:           cfg.Version,
		logger:            cfg.Logger,
		nowFn:             cfg.Now,
		tracer:            otel.Tracer("mcrelay/proxy"),
		holder:            NewConfigHolder(cfg.Config),
		stats:             &Stats{},
		waiting:           newWaitingQueues(),
		onShutdownRequest: cfg.OnShutdownRequest,
		loopFns:           make(chan func(), 128),
		done:              make(chan struct{}),
	}
	p.sched = newTaskScheduler(context.Background(), func(fn func()) { p.RunInLoop(fn) })
	p.flush = NewFlushCoordinator(cfg.Options.MaxNoFlushEventLoops)
	p.dmap = newDestinationMap(p, cfg.Logger)
	p.mq = NewMessageQueue(QueueConfig{
		Capacity:        cfg.Options.ClientQueueSize,
		OnMessage:       p.messageReady,
		NoNotifyRate:    cfg.Options.ClientQueueNoNotifyRate,
		WaitThresholdUs: cfg.Options.ClientQueueWaitThresholdUs,
		Now:             cfg.Now,
		OnNotify: func() {
			p.stats.IncrementSafe(statClientQueueNotifications)
		},
		DrainHook: func(last bool) bool {
			return p.flush.OnDrainBoundary(last, p.sched.RunQueueSize())
		},
	})
	return p
}

// Start launches the worker's event loop on its own goroutine.
func (p *Proxy) Start() {
	go p.loop()
}

// Done is closed after the loop has torn down on its own goroutine.
func (p *Proxy) Done() <-chan struct{} {
	return p.done
}

// ID returns the worker index.
func (p *Proxy) ID() int {
	return p.id
}

// Options returns the worker's options.
func (p *Proxy) Options() Options {
	return p.opts
}

// FlushList returns the worker's flush coordinator for transports to
// register pending write callbacks on.
func (p *Proxy) FlushList() *FlushCoordinator {
	return p.flush
}

// Destinations returns the worker's destination map.
func (p *Proxy) Destinations() *DestinationMap {
	return p.dmap
}

// QueueNotifyPeriod reports the message queue's adaptive notify period.
func (p *Proxy) QueueNotifyPeriod() int {
	return p.mq.CurrentNotifyPeriod()
}

// SendMessage enqueues one message for the worker, blocking while the
// queue is full. Safe from any goroutine.
func (p *Proxy) SendMessage(m Message) {
	p.mq.BlockingWrite(m)
}

// DispatchRequest hands a request context to this worker. Ownership of the
// context transfers with the message.
func (p *Proxy) DispatchRequest(rc *RequestContext) {
	p.SendMessage(Message{Type: MessageRequest, Request: rc})
}

// RunInLoop schedules fn on the worker's event loop. Returns false if the
// worker has shut down and the function will never run.
func (p *Proxy) RunInLoop(fn func()) bool {
	select {
	case p.loopFns <- fn:
		return true
	case <-p.done:
		return false
	}
}

// runInLoopWait runs fn on the loop and blocks until it finishes.
func (p *Proxy) runInLoopWait(fn func()) bool {
	ran := make(chan struct{})
	if !p.RunInLoop(func() {
		fn()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-p.done:
		return false
	}
}

// StatsSnapshot copies the worker's counters. It synchronizes with the
// event loop, so it is safe from any goroutine. Returns nil after
// shutdown.
func (p *Proxy) StatsSnapshot() Snapshot {
	var snap Snapshot
	if !p.runInLoopWait(func() { snap = p.stats.snapshot() }) {
		return nil
	}
	return snap
}

// Shutdown requests loop teardown. The shutdown message exists solely to
// wake the loop so it observes the flag; teardown itself runs on the
// worker goroutine. Idempotent.
func (p *Proxy) Shutdown() {
	if p.shuttingDown.Swap(true) {
		return
	}
	p.SendMessage(Message{Type: MessageShutdown})
}

// loop is the worker's event loop: it interleaves message-queue drains,
// task finally-callbacks, and staged flushes until shutdown is observed.
func (p *Proxy) loop() {
	defer close(p.done)

	if p.opts.ResetInactiveConnectionInterval > 0 {
		p.dmap.SetResetTimer(p.opts.ResetInactiveConnectionInterval)
	}

	sweep := time.NewTicker(p.sweepInterval())
	defer sweep.Stop()

	for {
		select {
		case <-p.mq.WakeC():
			p.mq.ConsumeAll()
		case <-sweep.C:
			if p.mq.Len() > 0 {
				p.mq.ConsumeAll()
			} else {
				// Idle turns still advance the flush policy so deferred
				// writes stay bounded by the no-flush budget.
				p.flush.OnDrainBoundary(true, p.sched.RunQueueSize())
			}
		case fn := <-p.loopFns:
			fn()
		}

		p.flush.RunStaged()

		if p.shuttingDown.Load() {
			p.teardown()
			return
		}
	}
}

// sweepInterval is the fallback drain period guaranteeing progress when
// notifications are suppressed. It tracks the queue wait threshold when one
// is configured.
func (p *Proxy) sweepInterval() time.Duration {
	if p.opts.ClientQueueWaitThresholdUs > 0 {
		return time.Duration(p.opts.ClientQueueWaitThresholdUs) * time.Microsecond
	}
	return time.Millisecond
}

// teardown destroys the worker on its own goroutine: destinations first
// (backend connections), then the message queue, discarding whatever is
// still buffered.
func (p *Proxy) teardown() {
	p.beingDestroyed = true
	p.dmap.close()
	p.mq.Teardown()

	old := p.holder.Swap(nil)
	old.Release()

	p.logger.Debug("proxy: destroyed", "worker", p.id)
}

// messageReady consumes one message on the worker loop.
func (p *Proxy) messageReady(m Message) {
	switch m.Type {
	case MessageRequest:
		m.Request.proxy = p
		m.Request.startProcessing()

	case MessageOldConfig:
		// Dropping the last reference here runs config teardown on the
		// worker goroutine, never on the reconfiguration thread.
		m.OldConfig.Release()

	case MessageShutdown:
		// Wake-only; the loop checks the shutdown flag after every turn.
	}
}

func (p *Proxy) now() int64 {
	return p.nowFn()
}

// rateLimited applies admission rules 1-3: diagnostic kinds and disabled
// limiting execute immediately; otherwise a request is rate-limited unless
// its priority queue is empty and in-flight capacity remains.
func (p *Proxy) rateLimited(priority protocol.Priority, kind protocol.Kind) bool {
	if kind.NotRateLimited() {
		return false
	}
	if p.opts.MaxInflightRequests == 0 {
		return false
	}
	if p.waiting.empty(priority) && p.numRequestsProcessing < p.opts.MaxInflightRequests {
		return false
	}
	return true
}

// dispatchRequest admits one request: execute now, park it in its priority
// queue, or shed it with BUSY when the waiting cap is hit. Worker loop
// only.
func (p *Proxy) dispatchRequest(rc *RequestContext) {
	if !p.rateLimited(rc.priority, rc.req.Kind) {
		p.processRequest(rc)
		return
	}

	if p.opts.MaxThrottledRequests > 0 && p.numRequestsWaiting >= p.opts.MaxThrottledRequests {
		rc.SendReply(protocol.BusyReply())
		return
	}

	w := &waitingRequest{ctx: rc, pushedAtUs: -1}
	// Stamp only when queue throttling and the waiting timeout are both
	// enabled.
	if p.opts.MaxInflightRequests > 0 && p.opts.MaxThrottledRequests > 0 && p.opts.WaitingRequestTimeoutMs > 0 {
		w.pushedAtUs = p.now()
	}
	p.waiting.push(rc.priority, w)
	p.numRequestsWaiting++
	p.stats.Increment(statReqsWaiting)
}

// processRequest moves a request into the in-flight set and routes it.
func (p *Proxy) processRequest(rc *RequestContext) {
	rc.markProcessing()
	p.numRequestsProcessing++
	p.stats.Increment(statReqsProcessing)

	rc.runPreprocess()
	p.routeHandlesProcessRequest(rc)

	p.stats.Increment(statRequestSent)
	p.stats.Increment(statRequestSentCount)
}

// requestDone settles in-flight accounting after a processed request's
// reply and pumps freed capacity into the waiting queues.
func (p *Proxy) requestDone() {
	p.numRequestsProcessing--
	p.stats.Decrement(statReqsProcessing)
	p.pump()
}

// routeHandlesProcessRequest hands one in-flight request to its handler.
// Diagnostic kinds have specialized branches; gets are intercepted for the
// internal key namespace; everything else adopts the current config
// snapshot and becomes a route task.
func (p *Proxy) routeHandlesProcessRequest(rc *RequestContext) {
	switch rc.req.Kind {
	case protocol.KindStats:
		reply, err := p.stats.statsReply(rc.req.KeyString())
		if err != nil {
			reply = protocol.ErrorReply("Error processing stats request: %v", err)
		}
		rc.SendReply(reply)

	case protocol.KindVersion:
		rc.SendReply(protocol.ValueReply([]byte(p.version)))

	case protocol.KindShutdown:
		if p.onShutdownRequest == nil {
			rc.SendReply(protocol.ErrorReply("shutdown requests are not enabled"))
			return
		}
		p.onShutdownRequest()
		rc.SendReply(protocol.NewReply(protocol.ResultOK))

	case protocol.KindGet, protocol.KindGets:
		rc.adoptConfig()
		if p.processGetServiceInfoRequest(rc) {
			return
		}
		p.addRouteTask(rc)

	default:
		rc.adoptConfig()
		p.addRouteTask(rc)
	}
}

// processGetServiceInfoRequest intercepts gets in the internal key
// namespace and answers them from the config's service-info surface.
// Returns false for ordinary keys.
func (p *Proxy) processGetServiceInfoRequest(rc *RequestContext) bool {
	if !rc.req.HasInternalKey() {
		return false
	}
	cfg := rc.Config()
	if cfg == nil || cfg.Info == nil {
		rc.SendReply(protocol.ErrorReply("service info is not available"))
		return true
	}
	cfg.Info.HandleRequest(rc.req.InternalKeySuffix(), rc)
	return true
}

// addRouteTask schedules the route-handle invocation for an adopted
// request. Kinds outside the routable set reply LOCAL_ERROR immediately.
func (p *Proxy) addRouteTask(rc *RequestContext) {
	cfg := rc.Config()
	kind := rc.req.Kind
	if cfg == nil || cfg.Route == nil || !cfg.KindRoutable(kind) {
		rc.SendReply(protocol.ErrorReply(
			"couldn't route request of type %s because the operation is not supported by route handles", kind))
		return
	}

	p.stats.BumpIncoming(kind)
	route := cfg.Route

	p.sched.AddTaskFinally(
		func(ctx context.Context) protocol.Reply {
			ctx = WithRequestContext(ctx, rc)
			ctx, span := p.tracer.Start(ctx, "proxy.route",
				trace.WithAttributes(attribute.String("request.kind", kind.String())))
			defer span.End()

			reply, err := route.Route(ctx, rc.Request())
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return protocol.ErrorReply("error routing request of type %s: %v", kind, err)
			}
			return reply
		},
		func(reply protocol.Reply) {
			rc.SendReply(reply)
		},
	)
}

// pump moves waiting requests into the in-flight set as capacity frees,
// walking priorities in ascending index order. Strict priority: lower
// priorities starve while higher ones have work.
func (p *Proxy) pump() {
	for i := 0; i < protocol.NumPriorities; i++ {
		q := p.waiting[i]
		for p.numRequestsProcessing < p.opts.MaxInflightRequests && q.Length() > 0 {
			p.numRequestsWaiting--
			p.stats.Decrement(statReqsWaiting)
			w := q.Remove()
			w.process(p)
		}
	}
}

// ReplaceConfig swaps in a new routing configuration and routes the
// displaced snapshot back through the message queue, so its teardown runs
// on the worker goroutine once the queue delivers it. Safe from any
// goroutine; in-flight requests keep the snapshot they adopted.
func (p *Proxy) ReplaceConfig(cfg *Config) {
	old := p.holder.Swap(cfg)
	p.stats.SetValueSafe(statConfigLastSuccess, time.Now().Unix())
	if old.Valid() {
		p.SendMessage(Message{Type: MessageOldConfig, OldConfig: &old})
	}
}

// ConfigSnapshot returns a counted reference to the current config.
func (p *Proxy) ConfigSnapshot() ConfigHandle {
	return p.holder.Snapshot()
}

// GetConfigUnsafe returns the current config without taking a reference.
func (p *Proxy) GetConfigUnsafe() *Config {
	return p.holder.Unsafe()
}

// GetConfigLocked returns the current config and an unlock func, holding
// the holder's read lock until released.
func (p *Proxy) GetConfigLocked() (*Config, func()) {
	return p.holder.Locked()
}
