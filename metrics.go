package mipgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordSearch(k int, duration time.Duration, err error) {
//	    p.searchHistogram.Observe(duration.Seconds())
//	    // ... record error state, k, etc.
//	}
type MetricsCollector interface {
	// RecordBulkload is called once after index construction.
	// n is the dataset size, duration the total build time.
	RecordBulkload(n int, duration time.Duration, err error)

	// RecordSearch is called after each top-k search.
	// k is the number of results requested, duration is the time taken,
	// err is nil if successful.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save or load.
	RecordSnapshot(op string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBulkload(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSnapshot(string, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BulkloadCount      atomic.Int64
	BulkloadErrors     atomic.Int64
	BulkloadTotalNanos atomic.Int64
	SearchCount        atomic.Int64
	SearchErrors       atomic.Int64
	SearchTotalNanos   atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotTotalNanos atomic.Int64
}

// RecordBulkload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBulkload(_ int, duration time.Duration, err error) {
	b.BulkloadCount.Add(1)
	b.BulkloadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BulkloadErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(_ string, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// AverageSearchLatency returns the mean search duration, zero before the
// first search.
func (b *BasicMetricsCollector) AverageSearchLatency() time.Duration {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}

	return time.Duration(b.SearchTotalNanos.Load() / count)
}
