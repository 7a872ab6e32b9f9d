package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	inflightOpsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "inflight_ops",
			Help:      "Number of operations currently in flight.",
		})

	pendingRpcGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "pending_rpcs",
			Help:      "Number of consolidated rpcs awaiting responses.",
		})
)

// AddInflightOps add the inflight operations count
func AddInflightOps(value int64) {
	inflightOpsGauge.Add(float64(value))
}

// AddPendingRpcs add the pending rpc count
func AddPendingRpcs(value int64) {
	pendingRpcGauge.Add(float64(value))
}
