// Package proxy implements the per-worker request-routing core: the
// cross-thread message queue feeding each worker's event loop, request
// admission with priority waiting queues, cooperative route-task execution
// with reply assembly, batched transport flushing, and hot swap of the
// active routing configuration.
package proxy

import "errors"

// Sentinel errors for proxy operations.
var (
	// ErrProxyStopped indicates the worker has been shut down and no
	// longer accepts messages.
	ErrProxyStopped = errors.New("proxy: stopped")

	// ErrUnknownStatsGroup indicates a stats request named a group the
	// registry does not know about.
	ErrUnknownStatsGroup = errors.New("proxy: unknown stats group")
)
