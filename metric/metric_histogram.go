package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	flushDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "flush_duration_seconds",
			Help:      "Bucketed histogram of batch flush duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.0, 20),
		})

	batchSizeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cubeclient",
			Subsystem: "batcher",
			Name:      "batch_size_ops",
			Help:      "Bucketed histogram of operations per flushed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2.0, 16),
		})
)

// ObserveFlushDuration observe the duration of a completed flush
func ObserveFlushDuration(start time.Time) {
	flushDurationHistogram.Observe(time.Since(start).Seconds())
}

// ObserveBatchSize observe the number of ops in a flushed batch
func ObserveBatchSize(ops int) {
	batchSizeHistogram.Observe(float64(ops))
}
