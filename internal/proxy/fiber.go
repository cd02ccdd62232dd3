package proxy

import (
	"context"
	"sync/atomic"

	"github.com/flemzord/mcrelay/pkg/protocol"
)

// TaskScheduler runs one cooperative task per routing call. A task body may
// block on backend I/O; its finally-callback is posted back to the owning
// worker's loop, so completions interleave with message drains but reply
// bookkeeping stays loop-confined. There is no ordering guarantee between
// tasks; within one task execution is sequential.
type TaskScheduler struct {
	post    func(func())
	baseCtx context.Context

	active  atomic.Int64
	pending atomic.Int64
}

func newTaskScheduler(baseCtx context.Context, post func(func())) *TaskScheduler {
	return &TaskScheduler{post: post, baseCtx: baseCtx}
}

// AddTaskFinally schedules body as a task and runs finally on the worker
// loop with the body's reply once it completes. A panic in the body is
// translated into a local-error reply at the scheduler level, so finally
// always runs and runs exactly once.
func (s *TaskScheduler) AddTaskFinally(body func(ctx context.Context) protocol.Reply, finally func(protocol.Reply)) {
	s.active.Add(1)
	go func() {
		reply := s.runBody(body)
		s.active.Add(-1)
		s.pending.Add(1)
		s.post(func() {
			s.pending.Add(-1)
			finally(reply)
		})
	}()
}

func (s *TaskScheduler) runBody(body func(ctx context.Context) protocol.Reply) (reply protocol.Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = protocol.ErrorReply("route task panicked: %v", r)
		}
	}()
	return body(s.baseCtx)
}

// RunQueueSize reports how many completed tasks are waiting to run their
// finally-callbacks on the worker loop. The flush policy treats these as
// runnable work.
func (s *TaskScheduler) RunQueueSize() int {
	return int(s.pending.Load())
}

// ActiveTasks reports how many task bodies are currently executing.
func (s *TaskScheduler) ActiveTasks() int {
	return int(s.active.Load())
}

// requestContextKey is the task-local slot carrying the current request
// context through the route-handle call tree.
type requestContextKey struct{}

// WithRequestContext installs rc as the task's current request context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the current request context installed at task
// entry, if any. Route handles use this instead of threading the context
// through every intermediate call.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
