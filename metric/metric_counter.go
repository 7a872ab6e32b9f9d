package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsAddedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "ops_added_total",
			Help:      "Total number of operations admitted into batches.",
		})

	opsFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "ops_failed_total",
			Help:      "Total number of operations that failed.",
		}, []string{"reason"})

	rpcSentCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "rpc_sent_total",
			Help:      "Total number of consolidated rpcs sent.",
		}, []string{"type"})

	flushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "flush_total",
			Help:      "Total number of batch flushes completed.",
		}, []string{"status"})
)

// IncOpsAdded inc the operations admitted
func IncOpsAdded() {
	opsAddedCounter.Inc()
}

// IncOpsFailed inc the operations failed with the reason
func IncOpsFailed(reason string) {
	opsFailedCounter.WithLabelValues(reason).Inc()
}

// IncRpcSent inc the consolidated rpcs sent
func IncRpcSent(rpcType string) {
	rpcSentCounter.WithLabelValues(rpcType).Inc()
}

// IncFlushCompleted inc the flushes completed with ok status
func IncFlushCompleted() {
	flushCounter.WithLabelValues("ok").Inc()
}

// IncFlushFailed inc the flushes completed with failed status
func IncFlushFailed() {
	flushCounter.WithLabelValues("failed").Inc()
}

// IncFlushAborted inc the flushes aborted
func IncFlushAborted() {
	flushCounter.WithLabelValues("aborted").Inc()
}
