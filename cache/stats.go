package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks cache performance counters. All methods are safe for
// concurrent use.
type Statistics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	// Payload accounting (range cache only)
	storedBytes atomic.Int64
	rawBytes    atomic.Int64

	// Protected by mutex
	mu          sync.RWMutex
	startTime   time.Time
	currentSize int64
	maxSize     int64
	memoryUsage int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Hit records a cache hit.
func (s *Statistics) Hit() {
	s.hits.Add(1)
}

// Miss records a cache miss.
func (s *Statistics) Miss() {
	s.misses.Add(1)
}

// Set records a cache set operation.
func (s *Statistics) Set() {
	s.sets.Add(1)
}

// Eviction records n evicted entries.
func (s *Statistics) Eviction(n int) {
	s.evictions.Add(int64(n))
}

// Expiration records n entries removed because their TTL elapsed.
func (s *Statistics) Expiration(n int) {
	s.expirations.Add(int64(n))
}

// AddPayload records the stored and raw sizes of a cached payload.
func (s *Statistics) AddPayload(stored, raw int) {
	s.storedBytes.Add(int64(stored))
	s.rawBytes.Add(int64(raw))
}

// UpdateSize updates the current cache size.
func (s *Statistics) UpdateSize(size int64) {
	s.mu.Lock()
	s.currentSize = size
	if size > s.maxSize {
		s.maxSize = size
	}
	s.mu.Unlock()
}

// UpdateMemoryUsage updates the tracked payload memory usage.
func (s *Statistics) UpdateMemoryUsage(usage int64) {
	s.mu.Lock()
	s.memoryUsage = usage
	s.mu.Unlock()
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 {
	return s.hits.Load()
}

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 {
	return s.misses.Load()
}

// Sets returns the total number of set operations.
func (s *Statistics) Sets() int64 {
	return s.sets.Load()
}

// Evictions returns the total number of evicted entries.
func (s *Statistics) Evictions() int64 {
	return s.evictions.Load()
}

// Expirations returns the total number of TTL-expired entries removed.
func (s *Statistics) Expirations() int64 {
	return s.expirations.Load()
}

// CurrentSize returns the current number of entries in the cache.
func (s *Statistics) CurrentSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSize
}

// MaxSize returns the maximum number of entries the cache has held.
func (s *Statistics) MaxSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSize
}

// MemoryUsage returns the tracked payload memory usage in bytes.
func (s *Statistics) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memoryUsage
}

// HitRatio returns the cache hit ratio (0.0 to 1.0).
func (s *Statistics) HitRatio() float64 {
	hits := s.Hits()
	misses := s.Misses()
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total)
}

// MissRatio returns the cache miss ratio (0.0 to 1.0).
func (s *Statistics) MissRatio() float64 {
	return 1.0 - s.HitRatio()
}

// CompressionRatio returns stored bytes divided by raw bytes across all
// cached payloads. Returns 1.0 when no payloads have been recorded.
func (s *Statistics) CompressionRatio() float64 {
	raw := s.rawBytes.Load()
	if raw == 0 {
		return 1.0
	}
	return float64(s.storedBytes.Load()) / float64(raw)
}

// Uptime returns how long the cache has been running.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// Reset resets all statistics to zero.
func (s *Statistics) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.evictions.Store(0)
	s.expirations.Store(0)
	s.storedBytes.Store(0)
	s.rawBytes.Store(0)

	s.mu.Lock()
	s.startTime = time.Now()
	s.currentSize = 0
	s.maxSize = 0
	s.memoryUsage = 0
	s.mu.Unlock()
}

// StatsSummary is a point-in-time snapshot of all statistics.
type StatsSummary struct {
	Hits             int64         `json:"hits"`
	Misses           int64         `json:"misses"`
	Sets             int64         `json:"sets"`
	Evictions        int64         `json:"evictions"`
	Expirations      int64         `json:"expirations"`
	CurrentSize      int64         `json:"current_size"`
	MaxSize          int64         `json:"max_size"`
	MemoryUsage      int64         `json:"memory_usage"`
	HitRatio         float64       `json:"hit_ratio"`
	MissRatio        float64       `json:"miss_ratio"`
	CompressionRatio float64       `json:"compression_ratio"`
	Uptime           time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Hits:             s.Hits(),
		Misses:           s.Misses(),
		Sets:             s.Sets(),
		Evictions:        s.Evictions(),
		Expirations:      s.Expirations(),
		CurrentSize:      s.CurrentSize(),
		MaxSize:          s.MaxSize(),
		MemoryUsage:      s.MemoryUsage(),
		HitRatio:         s.HitRatio(),
		MissRatio:        s.MissRatio(),
		CompressionRatio: s.CompressionRatio(),
		Uptime:           s.Uptime(),
	}
}
