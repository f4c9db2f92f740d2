package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hupe1980/quadgo/codec"
	"github.com/hupe1980/quadgo/geom"
	"github.com/hupe1980/quadgo/metadata"
)

// querySignature is the canonical identity of a range query. Two lookups
// with the same bounds and the same filter list (in the same order) share a
// cache entry.
type querySignature struct {
	Bounds  geom.Bounds         `json:"bounds"`
	Filters *metadata.FilterSet `json:"filters,omitempty"`
}

type rangeItem[T comparable] struct {
	key    uint64
	bounds geom.Bounds

	// payload holds the codec-encoded result set, compressed according to
	// the cache's compression type.
	payload []byte
	rawLen  int

	timestamp   time.Time
	lastAccess  time.Time
	accessCount int64
}

// RangeCache is an LRU+TTL cache mapping a hashed range-query signature to
// a materialized result set. Result sets are stored as encoded payloads so
// cached data is immutable, byte-accounted and optionally compressed.
//
// Unlike the point cache, eviction order follows insertion time rather than
// last access: a range result is refreshed by re-setting it, not by reading
// it.
type RangeCache[T comparable] struct {
	mu        sync.Mutex
	opts      Options
	items     map[uint64]*list.Element
	evictList *list.List // front = most recently inserted
	stats     *Statistics
	memBytes  int64

	now func() time.Time
}

// NewRangeCache creates a new range cache.
func NewRangeCache[T comparable](optFns ...func(*Options)) *RangeCache[T] {
	opts := DefaultRangeOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultRangeOptions().MaxEntries
	}
	if opts.EvictionBuffer < 0 {
		opts.EvictionBuffer = 0
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	return &RangeCache[T]{
		opts:      opts,
		items:     make(map[uint64]*list.Element),
		evictList: list.New(),
		stats:     NewStatistics(),
		now:       time.Now,
	}
}

// key hashes the query signature with FNV-1a over its encoded form.
func (c *RangeCache[T]) key(bounds geom.Bounds, filters *metadata.FilterSet) (uint64, error) {
	encoded, err := c.opts.Codec.Marshal(querySignature{Bounds: bounds, Filters: filters})
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write(encoded)

	return h.Sum64(), nil
}

// Get returns the cached result set for the given query. TTL-expired
// entries are reported as misses without being removed; payloads that fail
// to decode are dropped and reported as misses.
func (c *RangeCache[T]) Get(bounds geom.Bounds, filters *metadata.FilterSet) ([]geom.QueryResult[T], bool) {
	key, err := c.key(bounds, filters)
	if err != nil {
		c.stats.Miss()
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.items[key]
	if !found {
		c.stats.Miss()
		return nil, false
	}

	item := element.Value.(*rangeItem[T])
	if c.expired(item.timestamp) {
		c.stats.Miss()
		return nil, false
	}

	results, err := c.decode(item.payload)
	if err != nil {
		c.removeElement(element)
		c.stats.UpdateSize(int64(len(c.items)))
		c.stats.UpdateMemoryUsage(c.memBytes)
		c.stats.Miss()
		return nil, false
	}

	item.lastAccess = c.now()
	item.accessCount++
	c.stats.Hit()

	return results, true
}

// Set caches a result set for the given query with a fresh timestamp, then
// runs the eviction check. When a memory budget is configured and exhausted
// the result is silently not cached.
func (c *RangeCache[T]) Set(bounds geom.Bounds, filters *metadata.FilterSet, results []geom.QueryResult[T]) error {
	key, err := c.key(bounds, filters)
	if err != nil {
		return err
	}

	raw, err := c.opts.Codec.Marshal(results)
	if err != nil {
		return err
	}

	payload, err := compressPayload(raw, c.opts.Compression)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// An overwrite behaves like a fresh insert: the old payload is released
	// and the entry moves to the front of the insertion order.
	if element, found := c.items[key]; found {
		c.removeElement(element)
	}

	if !c.opts.Controller.TryAcquireMemory(int64(len(payload))) {
		return nil
	}

	now := c.now()
	item := &rangeItem[T]{
		key:        key,
		bounds:     bounds,
		payload:    payload,
		rawLen:     len(raw),
		timestamp:  now,
		lastAccess: now,
	}

	c.items[key] = c.evictList.PushFront(item)
	c.memBytes += int64(len(payload))

	c.stats.Set()
	c.stats.AddPayload(len(payload), len(raw))
	c.evict()
	c.stats.UpdateSize(int64(len(c.items)))
	c.stats.UpdateMemoryUsage(c.memBytes)

	return nil
}

// evict removes oldest-inserted entries once the cache grows past
// MaxEntries, removing the overshoot plus EvictionBuffer extra entries in
// one pass.
func (c *RangeCache[T]) evict() {
	if len(c.items) <= c.opts.MaxEntries {
		return
	}

	toRemove := len(c.items) - c.opts.MaxEntries + c.opts.EvictionBuffer

	removed := 0
	for removed < toRemove {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
		removed++
	}

	c.stats.Eviction(removed)
}

// EvictExpired removes every TTL-expired entry regardless of cache size and
// returns the number removed.
func (c *RangeCache[T]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, element := range c.items {
		if c.expired(element.Value.(*rangeItem[T]).timestamp) {
			toRemove = append(toRemove, element)
		}
	}

	for _, element := range toRemove {
		c.removeElement(element)
	}

	c.stats.Expiration(len(toRemove))
	c.stats.UpdateSize(int64(len(c.items)))
	c.stats.UpdateMemoryUsage(c.memBytes)

	return len(toRemove)
}

// Clear removes all entries.
func (c *RangeCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, element := range c.items {
		toRemove = append(toRemove, element)
	}
	for _, element := range toRemove {
		c.removeElement(element)
	}

	c.stats.UpdateSize(0)
	c.stats.UpdateMemoryUsage(c.memBytes)
}

// ClearRegion removes all entries whose stored query bounds intersect the
// given region and returns the number removed.
func (c *RangeCache[T]) ClearRegion(bounds geom.Bounds) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, element := range c.items {
		if element.Value.(*rangeItem[T]).bounds.Intersects(bounds) {
			toRemove = append(toRemove, element)
		}
	}

	for _, element := range toRemove {
		c.removeElement(element)
	}

	c.stats.UpdateSize(int64(len(c.items)))
	c.stats.UpdateMemoryUsage(c.memBytes)

	return len(toRemove)
}

// Len returns the current number of entries, expired ones included.
func (c *RangeCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// MemoryUsage returns the bytes held by stored payloads.
func (c *RangeCache[T]) MemoryUsage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memBytes
}

// Stats returns a snapshot of the cache statistics.
func (c *RangeCache[T]) Stats() StatsSummary {
	return c.stats.Summary()
}

func (c *RangeCache[T]) decode(payload []byte) ([]geom.QueryResult[T], error) {
	raw, err := decompressPayload(payload, c.opts.Compression)
	if err != nil {
		return nil, err
	}

	var results []geom.QueryResult[T]
	if err := c.opts.Codec.Unmarshal(raw, &results); err != nil {
		return nil, err
	}

	return results, nil
}

func (c *RangeCache[T]) expired(timestamp time.Time) bool {
	if c.opts.TTL <= 0 {
		return false
	}
	return c.now().Sub(timestamp) > c.opts.TTL
}

func (c *RangeCache[T]) removeElement(element *list.Element) {
	c.evictList.Remove(element)
	item := element.Value.(*rangeItem[T])
	delete(c.items, item.key)
	c.memBytes -= int64(len(item.payload))
	c.opts.Controller.ReleaseMemory(int64(len(item.payload)))
}
