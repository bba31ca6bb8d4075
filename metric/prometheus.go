// Package metric provides a Prometheus-backed implementation of
// fastpoint.MetricsCollector.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fastpoint/fastpoint"
)

var _ fastpoint.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector exports fastpoint operation metrics to a Prometheus
// registry. The zero value is not usable; construct with
// NewPrometheusCollector.
type PrometheusCollector struct {
	addTotal    *prometheus.CounterVec
	addPoints   prometheus.Counter
	addDuration prometheus.Histogram

	queryTotal    *prometheus.CounterVec
	queryDuration prometheus.Histogram

	batchTotal   *prometheus.CounterVec
	batchQueries prometheus.Counter

	fusionTotal prometheus.Counter
	fusionHits  prometheus.Counter
}

// NewPrometheusCollector builds a collector and registers its metrics with
// reg. Pass prometheus.DefaultRegisterer to use the process default.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	if namespace == "" {
		namespace = "fastpoint"
	}

	c := &PrometheusCollector{
		addTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "add_total",
			Help:      "Ingestion calls by status.",
		}, []string{"status"}),
		addPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "add_points_total",
			Help:      "Records upserted across all ingestion calls.",
		}),
		addDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "add_duration_seconds",
			Help:      "Ingestion call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_total",
			Help:      "Single queries by status and mode.",
		}, []string{"status", "mode"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Single query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_batch_total",
			Help:      "Batched query calls by status.",
		}, []string{"status"}),
		batchQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_batch_queries_total",
			Help:      "Logical queries across all batched calls.",
		}),
		fusionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_total",
			Help:      "Rank fusions performed.",
		}),
		fusionHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_hits_total",
			Help:      "Fused hits emitted across all fusions.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.addTotal, c.addPoints, c.addDuration,
		c.queryTotal, c.queryDuration,
		c.batchTotal, c.batchQueries,
		c.fusionTotal, c.fusionHits,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAdd implements fastpoint.MetricsCollector.
func (c *PrometheusCollector) RecordAdd(points int, duration time.Duration, err error) {
	c.addTotal.WithLabelValues(status(err)).Inc()
	c.addPoints.Add(float64(points))
	c.addDuration.Observe(duration.Seconds())
}

// RecordQuery implements fastpoint.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(hybrid bool, duration time.Duration, err error) {
	mode := "single"
	if hybrid {
		mode = "hybrid"
	}
	c.queryTotal.WithLabelValues(status(err), mode).Inc()
	c.queryDuration.Observe(duration.Seconds())
}

// RecordQueryBatch implements fastpoint.MetricsCollector.
func (c *PrometheusCollector) RecordQueryBatch(queries int, duration time.Duration, err error) {
	c.batchTotal.WithLabelValues(status(err)).Inc()
	c.batchQueries.Add(float64(queries))
}

// RecordFusion implements fastpoint.MetricsCollector.
func (c *PrometheusCollector) RecordFusion(lists, hits int) {
	c.fusionTotal.Inc()
	c.fusionHits.Add(float64(hits))
}
