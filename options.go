package quadgo

import (
	"log/slog"

	"github.com/hupe1980/quadgo/cache"
	"github.com/hupe1980/quadgo/codec"
	"github.com/hupe1980/quadgo/quadtree"
	"github.com/hupe1980/quadgo/resource"
)

// DefaultLookupRadius is the search radius in world units used by point
// lookups that fall through to the tree.
const DefaultLookupRadius = 256.0

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	compression      cache.CompressionType
	lookupRadius     float64
	treeOptions      []func(*quadtree.Options)
}

// Option configures Quadgo constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
//
// Breaking changes are expected while Quadgo is pre-release.
type Option func(*options)

// WithCodec configures the codec used for encoding cached range payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLookupRadius configures how far a point lookup searches for the
// nearest placement when the caches cannot answer. A radius <= 0 searches
// the whole world.
//
// If not set, DefaultLookupRadius is used.
func WithLookupRadius(radius float64) Option {
	return func(o *options) {
		o.lookupRadius = radius
	}
}

// WithCompressionType selects the compression applied to cached range
// payloads. It only takes effect when Config.CompressionEnabled is set.
//
// If not set, cache.CompressionLZ4 is used.
func WithCompressionType(ct cache.CompressionType) Option {
	return func(o *options) {
		o.compression = ct
	}
}

// WithResourceController attaches a controller that bounds cache memory and
// throttles background scans. Pass nil to run without limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithTreeOptions configures the quadtree backing the repository.
//
// Example:
//
//	quadgo.New[string](world, cfg, quadgo.WithTreeOptions(func(o *quadtree.Options) {
//	    o.MaxDepth = 12
//	    o.MaxEntriesPerNode = 32
//	}))
func WithTreeOptions(optFns ...func(*quadtree.Options)) Option {
	return func(o *options) {
		o.treeOptions = optFns
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &quadgo.BasicMetricsCollector{}
//	repo, _ := quadgo.New[string](world, cfg, quadgo.WithMetricsCollector(metrics))
//	// ... use repo ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lookups: %d, Avg latency: %dns\n", stats.PointLookupCount, stats.PointLookupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := quadgo.NewJSONLogger(slog.LevelInfo)
//	repo, _ := quadgo.New[string](world, cfg, quadgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            nil,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      cache.CompressionLZ4,
		lookupRadius:     DefaultLookupRadius,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
