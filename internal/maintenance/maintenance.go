// Package maintenance runs the relay's periodic background jobs on a cron
// scheduler: stats reporting and anything else that must tick while the
// workers serve traffic.
package maintenance

import "context"

// Job is a unit of periodic work.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a cron expression, including @every descriptors
	// (e.g. "@every 1m").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}
