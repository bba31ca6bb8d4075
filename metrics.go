package fastpoint

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the metric
// subpackage ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordAdd is called after each ingestion call.
	// points is the number of records upserted, duration is the total
	// time taken, err is nil if successful.
	RecordAdd(points int, duration time.Duration, err error)

	// RecordQuery is called after each single query.
	// hybrid reports whether dense and sparse searches were fused.
	RecordQuery(hybrid bool, duration time.Duration, err error)

	// RecordQueryBatch is called after each batched query.
	// queries is the number of logical queries in the batch.
	RecordQueryBatch(queries int, duration time.Duration, err error)

	// RecordFusion is called after each rank fusion.
	// lists is the number of merged result lists, hits the fused output
	// size.
	RecordFusion(lists, hits int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordQuery(bool, time.Duration, error)     {}
func (NoopMetricsCollector) RecordQueryBatch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFusion(int, int)                      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount        atomic.Int64
	AddErrors       atomic.Int64
	AddPoints       atomic.Int64
	AddTotalNanos   atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryHybrid     atomic.Int64
	QueryTotalNanos atomic.Int64
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	BatchQueries    atomic.Int64
	FusionCount     atomic.Int64
	FusionHits      atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(points int, duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddPoints.Add(int64(points))
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(hybrid bool, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if hybrid {
		b.QueryHybrid.Add(1)
	}
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordQueryBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQueryBatch(queries int, duration time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchQueries.Add(int64(queries))
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordFusion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFusion(lists, hits int) {
	b.FusionCount.Add(1)
	b.FusionHits.Add(int64(hits))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:      b.AddCount.Load(),
		AddErrors:     b.AddErrors.Load(),
		AddPoints:     b.AddPoints.Load(),
		AddAvgNanos:   avgNanos(b.AddTotalNanos.Load(), b.AddCount.Load()),
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryHybrid:   b.QueryHybrid.Load(),
		QueryAvgNanos: avgNanos(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		BatchCount:    b.BatchCount.Load(),
		BatchErrors:   b.BatchErrors.Load(),
		BatchQueries:  b.BatchQueries.Load(),
		FusionCount:   b.FusionCount.Load(),
		FusionHits:    b.FusionHits.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount      int64
	AddErrors     int64
	AddPoints     int64
	AddAvgNanos   int64
	QueryCount    int64
	QueryErrors   int64
	QueryHybrid   int64
	QueryAvgNanos int64
	BatchCount    int64
	BatchErrors   int64
	BatchQueries  int64
	FusionCount   int64
	FusionHits    int64
}
