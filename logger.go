package quadgo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/quadgo/geom"
)

// Logger wraps slog.Logger with quadgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCoordinate adds x/z fields to the logger.
func (l *Logger) WithCoordinate(c geom.Coordinate) *Logger {
	return &Logger{
		Logger: l.Logger.With("x", c.X, "z", c.Z),
	}
}

// WithRegion adds bounds fields to the logger.
func (l *Logger) WithRegion(b geom.Bounds) *Logger {
	return &Logger{
		Logger: l.Logger.With("min_x", b.MinX, "min_z", b.MinZ, "max_x", b.MaxX, "max_z", b.MaxZ),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs a placement insert.
func (l *Logger) LogInsert(ctx context.Context, c geom.Coordinate, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"x", c.X,
			"z", c.Z,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"x", c.X,
			"z", c.Z,
		)
	}
}

// LogPointLookup logs a point lookup and the layer that answered it.
// Misses are routine and logged at debug level.
func (l *Logger) LogPointLookup(ctx context.Context, c geom.Coordinate, source LookupSource, confidence float64, err error) {
	if err != nil {
		l.DebugContext(ctx, "point lookup missed",
			"x", c.X,
			"z", c.Z,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "point lookup completed",
			"x", c.X,
			"z", c.Z,
			"source", string(source),
			"confidence", confidence,
		)
	}
}

// LogRangeQuery logs a range query.
func (l *Logger) LogRangeQuery(ctx context.Context, b geom.Bounds, results int, cached bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range query failed",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "range query completed",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"results", results,
			"cached", cached,
		)
	}
}

// LogSeed logs an externally supplied range answer being cached.
func (l *Logger) LogSeed(ctx context.Context, b geom.Bounds, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range seed failed",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "range seed completed",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"results", results,
		)
	}
}

// LogCachePopulate logs a best-effort cache population failure.
func (l *Logger) LogCachePopulate(ctx context.Context, layer string, err error) {
	l.WarnContext(ctx, "cache populate failed",
		"layer", layer,
		"error", err,
	)
}

// LogClusterUpdate logs a cluster recomputation.
func (l *Logger) LogClusterUpdate(ctx context.Context, c geom.Coordinate, confidence float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cluster update failed",
			"x", c.X,
			"z", c.Z,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cluster updated",
			"x", c.X,
			"z", c.Z,
			"confidence", confidence,
		)
	}
}

// LogEvict logs an expiry sweep.
func (l *Logger) LogEvict(ctx context.Context, removed int) {
	l.DebugContext(ctx, "expired entries evicted",
		"removed", removed,
	)
}

// LogClear logs a full cache clear.
func (l *Logger) LogClear(ctx context.Context, removed int) {
	l.InfoContext(ctx, "caches cleared",
		"removed", removed,
	)
}

// LogClearRegion logs a regional cache clear.
func (l *Logger) LogClearRegion(ctx context.Context, b geom.Bounds, removed int) {
	l.InfoContext(ctx, "region cleared",
		"min_x", b.MinX,
		"min_z", b.MinZ,
		"max_x", b.MaxX,
		"max_z", b.MaxZ,
		"removed", removed,
	)
}

// LogOptimize logs a cluster maintenance pass.
func (l *Logger) LogOptimize(ctx context.Context, updated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "optimize failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clusters optimized",
			"updated", updated,
		)
	}
}

// LogWarmup logs an eager region warmup.
func (l *Logger) LogWarmup(ctx context.Context, b geom.Bounds, populated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "region warmup failed",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "region warmed up",
			"min_x", b.MinX,
			"min_z", b.MinZ,
			"max_x", b.MaxX,
			"max_z", b.MaxZ,
			"populated", populated,
		)
	}
}

// LogPreload logs an eager cluster preload.
func (l *Logger) LogPreload(ctx context.Context, c geom.Coordinate, updated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cluster preload failed",
			"x", c.X,
			"z", c.Z,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clusters preloaded",
			"x", c.X,
			"z", c.Z,
			"updated", updated,
		)
	}
}
