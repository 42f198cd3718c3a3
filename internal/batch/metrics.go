package batch

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ponto_batch_runs_total",
		Help: "Batch runs by mode and result.",
	}, []string{"mode", "result"})

	badgeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ponto_batch_badge_failures_total",
		Help: "Per-badge failures reported across all batch runs.",
	})
)

func init() {
	prometheus.MustRegister(runsTotal, badgeFailuresTotal)
}
