package proxy

import (
	"time"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// RequestContext carries one request's mutable state through the worker:
// the reply sink, the adopted config snapshot, priority, and admission
// bookkeeping. Ownership moves with the request — acceptor, message queue,
// waiting queue, route task — and exactly one reply is sent per context.
type RequestContext struct {
	proxy *Proxy

	req      protocol.Request
	priority protocol.Priority
	sink     protocol.ReplySink

	// Preprocess, if set, runs on the worker loop just before routing.
	preprocess func(*RequestContext)

	cfg        ConfigHandle
	processing bool
	replied    bool

	createdAt time.Time
}

// NewRequestContext builds a context for one inbound request. The sink is
// invoked exactly once with the final reply.
func NewRequestContext(req protocol.Request, priority protocol.Priority, sink protocol.ReplySink) *RequestContext {
	if !priority.Valid() {
		priority = protocol.PriorityNormal
	}
	return &RequestContext{
		req:       req,
		priority:  priority,
		sink:      sink,
		createdAt: time.Now(),
	}
}

// SetPreprocess installs a hook run on the worker loop immediately before
// the request enters routing. Must be set before dispatch.
func (rc *RequestContext) SetPreprocess(fn func(*RequestContext)) {
	rc.preprocess = fn
}

// Request returns the request this context carries.
func (rc *RequestContext) Request() *protocol.Request {
	return &rc.req
}

// Priority returns the admission priority.
func (rc *RequestContext) Priority() protocol.Priority {
	return rc.priority
}

// Config returns the config snapshot adopted at admission, or nil before
// adoption.
func (rc *RequestContext) Config() *Config {
	return rc.cfg.Config()
}

// IsProcessing reports whether the worker has adopted this request into the
// in-flight set.
func (rc *RequestContext) IsProcessing() bool {
	return rc.processing
}

// startProcessing is the entry point invoked when the worker's loop pops
// this context off the message queue.
func (rc *RequestContext) startProcessing() {
	rc.proxy.dispatchRequest(rc)
}

// markProcessing flags adoption by the worker. Panics if already adopted;
// a double dispatch is a programming error.
func (rc *RequestContext) markProcessing() {
	if rc.processing {
		panic("proxy: request context dispatched twice")
	}
	rc.processing = true
}

// runPreprocess invokes the preprocess hook, if any.
func (rc *RequestContext) runPreprocess() {
	if rc.preprocess != nil {
		rc.preprocess(rc)
	}
}

// adoptConfig captures the worker's current config snapshot. The snapshot
// is retained for the lifetime of the context, across any number of
// suspensions, and released when the reply is sent.
func (rc *RequestContext) adoptConfig() {
	rc.cfg = rc.proxy.holder.Snapshot()
}

// SendReply delivers the final reply and ends the context's lifetime:
// the config snapshot is released, in-flight accounting is settled, and
// freed capacity is pumped into the waiting queues. Worker loop only; a
// second call is ignored so every path can reply unconditionally.
func (rc *RequestContext) SendReply(reply protocol.Reply) {
	if rc.replied {
		return
	}
	rc.replied = true

	if rc.proxy != nil {
		switch reply.Result {
		case protocol.ResultBusy:
			rc.proxy.stats.Increment(statBusyReplies)
		case protocol.ResultLocalError:
			rc.proxy.stats.Increment(statLocalErrors)
		}
	}

	if rc.sink != nil {
		rc.sink(reply)
	}

	rc.cfg.Release()
	rc.cfg = ConfigHandle{}

	if rc.processing && rc.proxy != nil {
		rc.proxy.requestDone()
	}
}
