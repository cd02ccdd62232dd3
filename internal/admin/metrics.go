package admin

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/mcrelay/internal/relay"
)

// statsCollector adapts the fleet's per-worker counter snapshots into
// prometheus metrics, labeled by worker.
type statsCollector struct {
	instance *relay.Instance
	desc     *prometheus.Desc
}

func newStatsCollector(instance *relay.Instance) *statsCollector {
	return &statsCollector{
		instance: instance,
		desc: prometheus.NewDesc(
			"mcrelay_proxy_stat",
			"Per-worker proxy counter, keyed by stat name.",
			[]string{"worker", "stat"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector. Snapshots synchronize with each
// worker's loop, so scrapes see consistent counters.
func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	for id, snap := range c.instance.StatsSnapshots() {
		worker := workerLabel(id)
		for name, v := range snap {
			ch <- prometheus.MustNewConstMetric(
				c.desc, prometheus.GaugeValue, float64(v), worker, name)
		}
	}
}

func workerLabel(id int) string {
	return "w" + strconv.Itoa(id)
}
