package syncer

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeAborted = "aborted"
	outcomeFailed  = "failed"
)

var syncRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "How many transaction syncs ran, partitioned by outcome.",
	},
	[]string{"outcome"},
)

var syncChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sync_changes_total",
		Help: "How many transaction changes were committed, partitioned by kind.",
	},
	[]string{"kind"},
)

// Collectors returns the Prometheus metrics of the sync engine.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{syncRuns, syncChanges}
}
