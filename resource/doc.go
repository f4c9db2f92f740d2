// Package resource implements the Controller for global limits and governance.
//
// The Controller provides centralized management of three resource types:
//
//   - Memory: Track and limit cache payload memory (non-blocking, fail-fast)
//   - Concurrency: Limit background maintenance workers (optimization, warmup)
//   - Scans: Rate-limit background entry scans to avoid starving foreground lookups
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 256 << 20, // 256MB limit
//	})
//
//	// Non-blocking acquire (returns error immediately if limit exceeded)
//	if err := rc.AcquireMemory(int64(len(payload))); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides to evict or skip caching
//	}
//	defer rc.ReleaseMemory(int64(len(payload)))
//
// # Background Worker Limits
//
// Limits concurrent background operations (cluster optimization, region warmup):
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 2,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # Scan Rate Limiting
//
// Token bucket rate limiter for background scans so that full-cache sweeps
// do not starve foreground lookups:
//
//	rc := resource.NewController(resource.Config{
//	    ScanLimitEntriesPerSec: 100_000,
//	})
//
//	if err := rc.WaitScan(ctx, batchSize); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
