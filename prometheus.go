package quadgo

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyBuckets spans sub-microsecond cache hits to multi-millisecond
// tree scans.
var latencyBuckets = prometheus.ExponentialBuckets(1e-6, 4, 10)

// PrometheusOptions configures the Prometheus metrics collector.
type PrometheusOptions struct {
	// Namespace is the first component of every metric name.
	Namespace string

	// ConstLabels are attached to every metric, e.g. to distinguish
	// multiple repositories scraped by the same registry.
	ConstLabels prometheus.Labels
}

// PrometheusMetricsCollector is a MetricsCollector that exports repository
// metrics to Prometheus.
type PrometheusMetricsCollector struct {
	inserts        prometheus.Counter
	insertErrors   prometheus.Counter
	insertDuration prometheus.Histogram

	pointLookups        *prometheus.CounterVec
	pointLookupDuration prometheus.Histogram

	rangeQueries       *prometheus.CounterVec
	rangeQueryErrors   prometheus.Counter
	rangeQueryDuration prometheus.Histogram
	rangeQueryResults  prometheus.Counter

	clusterUpdates      prometheus.Counter
	clusterUpdateErrors prometheus.Counter

	evictionRuns   prometheus.Counter
	evictedEntries prometheus.Counter

	optimizeRuns      prometheus.Counter
	optimizedClusters prometheus.Counter
	optimizeErrors    prometheus.Counter

	warmupRuns    prometheus.Counter
	warmupErrors  prometheus.Counter
	warmedEntries prometheus.Counter
}

// NewPrometheusMetricsCollector creates a collector and registers its metrics
// with reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewPrometheusMetricsCollector(reg prometheus.Registerer, optFns ...func(o *PrometheusOptions)) (*PrometheusMetricsCollector, error) {
	opts := PrometheusOptions{
		Namespace: "quadgo",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusMetricsCollector{
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "repository",
			Name:        "inserts_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of placement writes",
		}),
		insertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "repository",
			Name:        "insert_errors_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of rejected placement writes",
		}),
		insertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "repository",
			Name:        "insert_duration_seconds",
			ConstLabels: opts.ConstLabels,
			Help:        "Duration of placement writes in seconds",
			Buckets:     latencyBuckets,
		}),
		pointLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "point_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of point lookups by answering layer",
		}, []string{"source"}),
		pointLookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "point_duration_seconds",
			ConstLabels: opts.ConstLabels,
			Help:        "Duration of point lookups in seconds",
			Buckets:     latencyBuckets,
		}),
		rangeQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "range_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of range queries by cache result",
		}, []string{"result"}),
		rangeQueryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "range_errors_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of failed range queries",
		}),
		rangeQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "range_duration_seconds",
			ConstLabels: opts.ConstLabels,
			Help:        "Duration of range queries in seconds",
			Buckets:     latencyBuckets,
		}),
		rangeQueryResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "lookup",
			Name:        "range_results_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of placements returned by range queries",
		}),
		clusterUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cluster",
			Name:        "updates_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of cluster recomputations",
		}),
		clusterUpdateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cluster",
			Name:        "update_errors_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of failed cluster recomputations",
		}),
		evictionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cache",
			Name:        "eviction_runs_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of expiry sweeps",
		}),
		evictedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cache",
			Name:        "evicted_entries_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of entries dropped by expiry sweeps",
		}),
		optimizeRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cluster",
			Name:        "optimize_runs_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of cluster maintenance passes",
		}),
		optimizedClusters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cluster",
			Name:        "optimized_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of clusters rebuilt by maintenance passes",
		}),
		optimizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cluster",
			Name:        "optimize_errors_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of failed cluster maintenance passes",
		}),
		warmupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cache",
			Name:        "warmup_runs_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of eager population passes",
		}),
		warmupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cache",
			Name:        "warmup_errors_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of failed eager population passes",
		}),
		warmedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   "cache",
			Name:        "warmed_entries_total",
			ConstLabels: opts.ConstLabels,
			Help:        "Total number of entries populated by eager passes",
		}),
	}

	collectors := []prometheus.Collector{
		p.inserts,
		p.insertErrors,
		p.insertDuration,
		p.pointLookups,
		p.pointLookupDuration,
		p.rangeQueries,
		p.rangeQueryErrors,
		p.rangeQueryDuration,
		p.rangeQueryResults,
		p.clusterUpdates,
		p.clusterUpdateErrors,
		p.evictionRuns,
		p.evictedEntries,
		p.optimizeRuns,
		p.optimizedClusters,
		p.optimizeErrors,
		p.warmupRuns,
		p.warmupErrors,
		p.warmedEntries,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return p, nil
}

// RecordInsert implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordInsert(duration time.Duration, err error) {
	p.inserts.Inc()
	p.insertDuration.Observe(duration.Seconds())
	if err != nil {
		p.insertErrors.Inc()
	}
}

// RecordPointLookup implements MetricsCollector. Misses are reported under
// the "none" source label rather than as errors.
func (p *PrometheusMetricsCollector) RecordPointLookup(duration time.Duration, source LookupSource, err error) {
	p.pointLookups.WithLabelValues(string(source)).Inc()
	p.pointLookupDuration.Observe(duration.Seconds())
}

// RecordRangeQuery implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordRangeQuery(duration time.Duration, cached bool, results int, err error) {
	result := "miss"
	if cached {
		result = "hit"
	}
	p.rangeQueries.WithLabelValues(result).Inc()
	p.rangeQueryDuration.Observe(duration.Seconds())
	p.rangeQueryResults.Add(float64(results))
	if err != nil {
		p.rangeQueryErrors.Inc()
	}
}

// RecordClusterUpdate implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordClusterUpdate(duration time.Duration, err error) {
	p.clusterUpdates.Inc()
	if err != nil {
		p.clusterUpdateErrors.Inc()
	}
}

// RecordEvict implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordEvict(duration time.Duration, removed int) {
	p.evictionRuns.Inc()
	p.evictedEntries.Add(float64(removed))
}

// RecordOptimize implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordOptimize(duration time.Duration, updated int, err error) {
	p.optimizeRuns.Inc()
	p.optimizedClusters.Add(float64(updated))
	if err != nil {
		p.optimizeErrors.Inc()
	}
}

// RecordWarmup implements MetricsCollector.
func (p *PrometheusMetricsCollector) RecordWarmup(duration time.Duration, populated int, err error) {
	p.warmupRuns.Inc()
	p.warmedEntries.Add(float64(populated))
	if err != nil {
		p.warmupErrors.Inc()
	}
}
