package webhook

import "github.com/prometheus/client_golang/prometheus"

var webhooksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhooks_total",
		Help: "How many Plaid webhooks were dispatched, partitioned by type, code and status.",
	},
	[]string{"type", "code", "status"},
)

// Collectors returns the Prometheus metrics of the dispatcher.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{webhooksTotal}
}
