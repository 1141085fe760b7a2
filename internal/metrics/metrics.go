// Package metrics defines the Prometheus collectors exposed by the coordinator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Coordinator-side metrics, grounded on the teacher's per-subsystem counters/gauges style
// (internal/pipeline/worker/lease_expiry.go's sessionsLeaseExpiredTotal).
var (
	JobsClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_jobs_claimed_total",
		Help: "Total number of jobs claimed by workers.",
	})
	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_jobs_completed_total",
		Help: "Total number of jobs completed successfully.",
	})
	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_jobs_failed_total",
		Help: "Total number of jobs that finished failed.",
	})
	JobsStaleReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_jobs_stale_reaped_total",
		Help: "Total number of jobs forcibly failed by stale-job reconciliation.",
	})
	JobsPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spacesaver_jobs_pruned_total",
		Help: "Total number of terminal jobs evicted from the document by pruning.",
	})
	ItemsQueuedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spacesaver_items_queued",
		Help: "Current number of items in the queued state.",
	})
	WorkersOnlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spacesaver_workers_online",
		Help: "Current number of workers considered online.",
	})
)

// NewRegistry builds the coordinator's Prometheus registry, pre-registered with the collectors above.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		JobsClaimedTotal,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobsStaleReapedTotal,
		JobsPrunedTotal,
		ItemsQueuedGauge,
		WorkersOnlineGauge,
	)
	return reg
}
