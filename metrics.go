package quadgo

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
//	    lookupCounter   prometheus.Counter
//	    lookupHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPointLookup(duration time.Duration, source quadgo.LookupSource, err error) {
//	    p.lookupCounter.Inc()
//	    // ... record answering layer, duration, etc.
//	}
//
// A ready-made Prometheus implementation is available via
// NewPrometheusMetricsCollector.
type MetricsCollector interface {
	// RecordInsert is called after each placement write.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordPointLookup is called after each point lookup.
	// source names the layer that answered; a miss reports SourceNone
	// together with a non-nil err.
	RecordPointLookup(duration time.Duration, source LookupSource, err error)

	// RecordRangeQuery is called after each range query.
	// cached is true when the range cache answered without touching the
	// tree, results is the number of placements returned.
	RecordRangeQuery(duration time.Duration, cached bool, results int, err error)

	// RecordClusterUpdate is called after each cluster recomputation.
	RecordClusterUpdate(duration time.Duration, err error)

	// RecordEvict is called after each expiry sweep.
	// removed is the number of entries dropped across all layers.
	RecordEvict(duration time.Duration, removed int)

	// RecordOptimize is called after each cluster maintenance pass.
	// updated is the number of clusters rebuilt.
	RecordOptimize(duration time.Duration, updated int, err error)

	// RecordWarmup is called after each eager population pass, covering
	// both region warmup and cluster preload.
	RecordWarmup(duration time.Duration, populated int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)                    {}
func (NoopMetricsCollector) RecordPointLookup(time.Duration, LookupSource, error) {}
func (NoopMetricsCollector) RecordRangeQuery(time.Duration, bool, int, error)     {}
func (NoopMetricsCollector) RecordClusterUpdate(time.Duration, error)             {}
func (NoopMetricsCollector) RecordEvict(time.Duration, int)                       {}
func (NoopMetricsCollector) RecordOptimize(time.Duration, int, error)             {}
func (NoopMetricsCollector) RecordWarmup(time.Duration, int, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount           atomic.Int64
	InsertErrors          atomic.Int64
	InsertTotalNanos      atomic.Int64
	PointLookupCount      atomic.Int64
	PointLookupTotalNanos atomic.Int64
	PointCacheHits        atomic.Int64
	ClusterHits           atomic.Int64
	TreeResolves          atomic.Int64
	PointLookupMisses     atomic.Int64
	RangeQueryCount       atomic.Int64
	RangeQueryTotalNanos  atomic.Int64
	RangeCacheHits        atomic.Int64
	RangeQueryErrors      atomic.Int64
	ClusterUpdateCount    atomic.Int64
	ClusterUpdateErrors   atomic.Int64
	EvictCount            atomic.Int64
	EvictedEntries        atomic.Int64
	OptimizeCount         atomic.Int64
	OptimizedClusters     atomic.Int64
	OptimizeErrors        atomic.Int64
	WarmupCount           atomic.Int64
	WarmupPopulated       atomic.Int64
	WarmupErrors          atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordPointLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPointLookup(duration time.Duration, source LookupSource, err error) {
	b.PointLookupCount.Add(1)
	b.PointLookupTotalNanos.Add(duration.Nanoseconds())
	switch source {
	case SourcePointCache:
		b.PointCacheHits.Add(1)
	case SourceCluster:
		b.ClusterHits.Add(1)
	case SourceTree:
		b.TreeResolves.Add(1)
	default:
		b.PointLookupMisses.Add(1)
	}
}

// RecordRangeQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeQuery(duration time.Duration, cached bool, results int, err error) {
	b.RangeQueryCount.Add(1)
	b.RangeQueryTotalNanos.Add(duration.Nanoseconds())
	if cached {
		b.RangeCacheHits.Add(1)
	}
	if err != nil {
		b.RangeQueryErrors.Add(1)
	}
}

// RecordClusterUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClusterUpdate(duration time.Duration, err error) {
	b.ClusterUpdateCount.Add(1)
	if err != nil {
		b.ClusterUpdateErrors.Add(1)
	}
}

// RecordEvict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvict(duration time.Duration, removed int) {
	b.EvictCount.Add(1)
	b.EvictedEntries.Add(int64(removed))
}

// RecordOptimize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOptimize(duration time.Duration, updated int, err error) {
	b.OptimizeCount.Add(1)
	b.OptimizedClusters.Add(int64(updated))
	if err != nil {
		b.OptimizeErrors.Add(1)
	}
}

// RecordWarmup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWarmup(duration time.Duration, populated int, err error) {
	b.WarmupCount.Add(1)
	b.WarmupPopulated.Add(int64(populated))
	if err != nil {
		b.WarmupErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:         b.InsertCount.Load(),
		InsertErrors:        b.InsertErrors.Load(),
		InsertAvgNanos:      b.getAvgInsertNanos(),
		PointLookupCount:    b.PointLookupCount.Load(),
		PointLookupAvgNanos: b.getAvgPointLookupNanos(),
		PointCacheHits:      b.PointCacheHits.Load(),
		ClusterHits:         b.ClusterHits.Load(),
		TreeResolves:        b.TreeResolves.Load(),
		PointLookupMisses:   b.PointLookupMisses.Load(),
		RangeQueryCount:     b.RangeQueryCount.Load(),
		RangeQueryAvgNanos:  b.getAvgRangeQueryNanos(),
		RangeCacheHits:      b.RangeCacheHits.Load(),
		RangeQueryErrors:    b.RangeQueryErrors.Load(),
		ClusterUpdateCount:  b.ClusterUpdateCount.Load(),
		ClusterUpdateErrors: b.ClusterUpdateErrors.Load(),
		EvictCount:          b.EvictCount.Load(),
		EvictedEntries:      b.EvictedEntries.Load(),
		OptimizeCount:       b.OptimizeCount.Load(),
		OptimizedClusters:   b.OptimizedClusters.Load(),
		OptimizeErrors:      b.OptimizeErrors.Load(),
		WarmupCount:         b.WarmupCount.Load(),
		WarmupPopulated:     b.WarmupPopulated.Load(),
		WarmupErrors:        b.WarmupErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgInsertNanos() int64 {
	count := b.InsertCount.Load()
	if count == 0 {
		return 0
	}
	return b.InsertTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgPointLookupNanos() int64 {
	count := b.PointLookupCount.Load()
	if count == 0 {
		return 0
	}
	return b.PointLookupTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgRangeQueryNanos() int64 {
	count := b.RangeQueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.RangeQueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount         int64
	InsertErrors        int64
	InsertAvgNanos      int64
	PointLookupCount    int64
	PointLookupAvgNanos int64
	PointCacheHits      int64
	ClusterHits         int64
	TreeResolves        int64
	PointLookupMisses   int64
	RangeQueryCount     int64
	RangeQueryAvgNanos  int64
	RangeCacheHits      int64
	RangeQueryErrors    int64
	ClusterUpdateCount  int64
	ClusterUpdateErrors int64
	EvictCount          int64
	EvictedEntries      int64
	OptimizeCount       int64
	OptimizedClusters   int64
	OptimizeErrors      int64
	WarmupCount         int64
	WarmupPopulated     int64
	WarmupErrors        int64
}
