package maintenance

import (
	"context"
	"log/slog"

	"github.com/flemzord/mcrelay/internal/relay"
)

// StatsReportJob periodically logs an aggregate of the fleet's counters so
// operators get a request-rate trail without scraping metrics.
type StatsReportJob struct {
	Instance *relay.Instance
	Logger   *slog.Logger

	// Every overrides the schedule. Defaults to "@every 1m".
	Every string
}

// Name implements Job.
func (j *StatsReportJob) Name() string { return "stats-report" }

// Schedule implements Job.
func (j *StatsReportJob) Schedule() string {
	if j.Every != "" {
		return j.Every
	}
	return "@every 1m"
}

// Run implements Job. It sums the per-worker snapshots and logs one line.
func (j *StatsReportJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	totals := map[string]int64{}
	for _, snap := range j.Instance.StatsSnapshots() {
		for name, v := range snap {
			totals[name] += v
		}
	}

	j.Logger.Info("maintenance: stats report",
		"workers", j.Instance.Workers(),
		"request_sent_count", totals["request_sent_count"],
		"reqs_processing", totals["proxy_reqs_processing"],
		"reqs_waiting", totals["proxy_reqs_waiting"],
		"busy_replies", totals["busy_replies"],
		"local_errors", totals["local_errors"],
	)
	return nil
}
