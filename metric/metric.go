package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(opsAddedCounter)
	registry.MustRegister(opsFailedCounter)
	registry.MustRegister(rpcSentCounter)
	registry.MustRegister(flushCounter)

	registry.MustRegister(inflightOpsGauge)
	registry.MustRegister(pendingRpcGauge)

	registry.MustRegister(flushDurationHistogram)
	registry.MustRegister(batchSizeHistogram)
}

// Registry returns the cubeclient metrics registry
func Registry() *prometheus.Registry {
	return registry
}
