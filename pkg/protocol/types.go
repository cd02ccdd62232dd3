// Package protocol defines the wire-neutral data contract between transports
// and the routing core. It covers request kinds, results, priorities, and the
// route-handle interface, without committing to a framing or wire format.
package protocol

import "context"

// Kind identifies the operation a request performs.
type Kind uint8

// Supported request kinds.
const (
	KindGet Kind = iota
	KindGets
	KindSet
	KindAdd
	KindReplace
	KindDelete
	KindTouch
	KindStats
	KindVersion
	KindShutdown
)

var kindNames = [...]string{
	KindGet:      "get",
	KindGets:     "gets",
	KindSet:      "set",
	KindAdd:      "add",
	KindReplace:  "replace",
	KindDelete:   "delete",
	KindTouch:    "touch",
	KindStats:    "stats",
	KindVersion:  "version",
	KindShutdown: "shutdown",
}

// String returns the protocol verb for the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// NotRateLimited reports whether the kind bypasses admission throttling.
// Diagnostic and control kinds are always executed immediately.
func (k Kind) NotRateLimited() bool {
	switch k {
	case KindStats, KindVersion, KindShutdown:
		return true
	}
	return false
}

// Result is the outcome category of a reply.
type Result uint8

// Reply results.
const (
	ResultOK Result = iota
	ResultStored
	ResultNotStored
	ResultFound
	ResultNotFound
	ResultDeleted
	ResultTouched
	ResultBusy
	ResultLocalError
	ResultRemoteError
	ResultTimeout
)

var resultNames = [...]string{
	ResultOK:          "ok",
	ResultStored:      "stored",
	ResultNotStored:   "not_stored",
	ResultFound:       "found",
	ResultNotFound:    "not_found",
	ResultDeleted:     "deleted",
	ResultTouched:     "touched",
	ResultBusy:        "busy",
	ResultLocalError:  "local_error",
	ResultRemoteError: "remote_error",
	ResultTimeout:     "timeout",
}

// String returns the lowercase name of the result.
func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// IsError reports whether the result represents a failure.
func (r Result) IsError() bool {
	switch r {
	case ResultBusy, ResultLocalError, ResultRemoteError, ResultTimeout:
		return true
	}
	return false
}

// Priority orders requests in the admission waiting queues.
// Lower values are served first.
type Priority int

// Request priorities.
const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	// NumPriorities is the number of distinct priority levels.
	NumPriorities = 3
)

// Valid reports whether the priority is within the supported range.
func (p Priority) Valid() bool {
	return p >= PriorityHigh && p < NumPriorities
}

// RouteHandle is the compiled routing program. Route maps a request to a
// reply by contacting one or more backends; it may block on backend I/O.
// A non-nil error is translated by the caller into a local-error reply.
type RouteHandle interface {
	Route(ctx context.Context, req *Request) (Reply, error)
}

// RouteHandleFunc adapts a function to the RouteHandle interface.
type RouteHandleFunc func(ctx context.Context, req *Request) (Reply, error)

// Route implements RouteHandle.
func (f RouteHandleFunc) Route(ctx context.Context, req *Request) (Reply, error) {
	return f(ctx, req)
}

// ReplySink delivers the final reply for one request back to its transport.
// A sink must be invoked exactly once per request.
type ReplySink func(Reply)
