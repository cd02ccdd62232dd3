package proxy

import (
	"github.com/eapache/queue/v2"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// waitingRequest is one admission-deferred request parked in a priority
// queue. pushedAtUs is nonnegative only when the waiting timeout is
// enabled.
type waitingRequest struct {
	ctx        *RequestContext
	pushedAtUs int64
}

// process re-admits the request once capacity frees. A stamped item that
// overstayed the waiting timeout replies BUSY and never reaches the route
// handle; it does not count against the in-flight limit.
func (w *waitingRequest) process(p *Proxy) {
	if w.pushedAtUs >= 0 {
		waitedUs := p.now() - w.pushedAtUs
		if waitedUs > 1000*int64(p.opts.WaitingRequestTimeoutMs) {
			p.stats.Increment(statWaitingTimeouts)
			w.ctx.SendReply(protocol.BusyReply())
			return
		}
	}
	p.processRequest(w.ctx)
}

// waitingQueues is the per-priority FIFO array. Index order is priority
// order: lower index drains first.
type waitingQueues [protocol.NumPriorities]*queue.Queue[*waitingRequest]

func newWaitingQueues() waitingQueues {
	var qs waitingQueues
	for i := range qs {
		qs[i] = queue.New[*waitingRequest]()
	}
	return qs
}

func (qs *waitingQueues) push(p protocol.Priority, w *waitingRequest) {
	qs[p].Add(w)
}

func (qs *waitingQueues) empty(p protocol.Priority) bool {
	return qs[p].Length() == 0
}

func (qs *waitingQueues) totalLen() int {
	n := 0
	for _, q := range qs {
		n += q.Length()
	}
	return n
}
