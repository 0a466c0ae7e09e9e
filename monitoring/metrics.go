package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/eventq/sim/eventqueue"
)

const metricPrefix = "eventq_"

var (
	queueLengthDesc = prometheus.NewDesc(
		metricPrefix+"queue_length",
		"Number of pending events in the queue",
		[]string{"queue"},
		nil,
	)

	bucketCountDesc = prometheus.NewDesc(
		metricPrefix+"bucket_count",
		"Number of buckets of a bucket queue",
		[]string{"queue"},
		nil,
	)

	bucketOccupancyDesc = prometheus.NewDesc(
		metricPrefix+"bucket_occupancy",
		"Moving average of events per bucket",
		[]string{"queue"},
		nil,
	)

	overflowLengthDesc = prometheus.NewDesc(
		metricPrefix+"overflow_length",
		"Number of events beyond the bucket horizon",
		[]string{"queue"},
		nil,
	)

	rebuildsDesc = prometheus.NewDesc(
		metricPrefix+"bucket_rebuilds_total",
		"Number of times a bucket queue has been rebuilt",
		[]string{"queue"},
		nil,
	)

	engineTimeDesc = prometheus.NewDesc(
		metricPrefix+"engine_time_seconds",
		"Current virtual time of the registered engine",
		nil,
		nil,
	)
)

// queueCollector reads the registered queues at scrape time.
type queueCollector struct {
	monitor *Monitor
}

func (c *queueCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- queueLengthDesc
	desc <- bucketCountDesc
	desc <- bucketOccupancyDesc
	desc <- overflowLengthDesc
	desc <- rebuildsDesc
	desc <- engineTimeDesc
}

func (c *queueCollector) Collect(metrics chan<- prometheus.Metric) {
	if c.monitor.engine != nil {
		metrics <- prometheus.MustNewConstMetric(engineTimeDesc,
			prometheus.GaugeValue, float64(c.monitor.engine.Now()))
	}

	for _, nq := range c.monitor.snapshotQueues() {
		metrics <- prometheus.MustNewConstMetric(queueLengthDesc,
			prometheus.GaugeValue, float64(nq.queue.Len()), nq.name)

		r, ok := nq.queue.(eventqueue.StatsReporter)
		if !ok {
			continue
		}

		stats, ok := r.BucketStats()
		if !ok {
			continue
		}

		metrics <- prometheus.MustNewConstMetric(bucketCountDesc,
			prometheus.GaugeValue, float64(stats.BucketCount), nq.name)
		metrics <- prometheus.MustNewConstMetric(bucketOccupancyDesc,
			prometheus.GaugeValue, stats.Occupancy, nq.name)
		metrics <- prometheus.MustNewConstMetric(overflowLengthDesc,
			prometheus.GaugeValue, float64(stats.Overflow), nq.name)
		metrics <- prometheus.MustNewConstMetric(rebuildsDesc,
			prometheus.CounterValue, float64(stats.Rebuilds), nq.name)
	}
}
