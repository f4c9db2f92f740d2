package cache

import (
	"container/list"
	"iter"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/quadgo/geom"
)

// pointKey identifies the discretized coordinate cell an entry is stored
// under. Coordinates are floored so that all lookups within the same unit
// cell resolve to the same entry.
type pointKey struct {
	x, z int64
}

func pointKeyFor(c geom.Coordinate) pointKey {
	return pointKey{
		x: int64(math.Floor(c.X)),
		z: int64(math.Floor(c.Z)),
	}
}

func (k pointKey) coordinate() geom.Coordinate {
	return geom.Coordinate{X: float64(k.x), Z: float64(k.z)}
}

type pointItem[T comparable] struct {
	key         pointKey
	value       T
	confidence  float64
	timestamp   time.Time
	lastAccess  time.Time
	accessCount int64
}

// PointCache is an LRU+TTL cache mapping a discretized coordinate to the
// most recently resolved value at that location. It absorbs repeated point
// lookups so the spatial tree only answers each location once per TTL.
//
// Entries expire lazily: an expired entry is reported as a miss but stays
// in place until a batch eviction, EvictExpired or an overwriting Set
// removes it.
type PointCache[T comparable] struct {
	mu        sync.Mutex
	opts      Options
	items     map[pointKey]*list.Element
	evictList *list.List // front = most recently accessed
	stats     *Statistics

	now func() time.Time
}

// NewPointCache creates a new point cache.
func NewPointCache[T comparable](optFns ...func(*Options)) *PointCache[T] {
	opts := DefaultPointOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultPointOptions().MaxEntries
	}
	if opts.EvictionBuffer < 0 {
		opts.EvictionBuffer = 0
	}

	return &PointCache[T]{
		opts:      opts,
		items:     make(map[pointKey]*list.Element),
		evictList: list.New(),
		stats:     NewStatistics(),
		now:       time.Now,
	}
}

// Get returns the cached value and confidence for the cell containing
// coord. An entry older than the TTL is reported as a miss exactly like an
// absent entry, without being removed.
func (c *PointCache[T]) Get(coord geom.Coordinate) (value T, confidence float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.items[pointKeyFor(coord)]
	if !found {
		c.stats.Miss()
		return value, 0, false
	}

	item := element.Value.(*pointItem[T])
	if c.expired(item.timestamp) {
		c.stats.Miss()
		return value, 0, false
	}

	item.lastAccess = c.now()
	item.accessCount++
	c.evictList.MoveToFront(element)
	c.stats.Hit()

	return item.value, item.confidence, true
}

// Set inserts or overwrites the entry for the cell containing coord with a
// fresh timestamp, then runs the eviction check.
func (c *PointCache[T]) Set(coord geom.Coordinate, value T, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pointKeyFor(coord)
	now := c.now()

	item := &pointItem[T]{
		key:        key,
		value:      value,
		confidence: confidence,
		timestamp:  now,
		lastAccess: now,
	}

	if element, found := c.items[key]; found {
		element.Value = item
		c.evictList.MoveToFront(element)
	} else {
		c.items[key] = c.evictList.PushFront(item)
	}

	c.stats.Set()
	c.evict()
	c.stats.UpdateSize(int64(len(c.items)))
}

// evict removes least-recently-accessed entries once the cache grows past
// MaxEntries. It removes the overshoot plus EvictionBuffer extra entries in
// one pass so the next sets do not each pay for an eviction.
func (c *PointCache[T]) evict() {
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
func (c *PointCache[T]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, element := range c.items {
		if c.expired(element.Value.(*pointItem[T]).timestamp) {
			toRemove = append(toRemove, element)
		}
	}

	for _, element := range toRemove {
		c.removeElement(element)
	}

	c.stats.Expiration(len(toRemove))
	c.stats.UpdateSize(int64(len(c.items)))

	return len(toRemove)
}

// Clear removes all entries.
func (c *PointCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[pointKey]*list.Element)
	c.evictList.Init()
	c.stats.UpdateSize(0)
}

// ClearRegion removes all entries whose coordinate lies inside bounds and
// returns the number removed.
func (c *PointCache[T]) ClearRegion(bounds geom.Bounds) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, element := range c.items {
		if bounds.Contains(key.coordinate()) {
			toRemove = append(toRemove, element)
		}
	}

	for _, element := range toRemove {
		c.removeElement(element)
	}

	c.stats.UpdateSize(int64(len(c.items)))

	return len(toRemove)
}

// Len returns the current number of entries, expired ones included.
func (c *PointCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// All returns an iterator over the non-expired entries as (coordinate,
// value) pairs. The iteration works on a snapshot, so the cache may be
// mutated while it runs.
func (c *PointCache[T]) All() iter.Seq2[geom.Coordinate, T] {
	c.mu.Lock()

	type pair struct {
		coord geom.Coordinate
		value T
	}

	pairs := make([]pair, 0, len(c.items))
	for key, element := range c.items {
		item := element.Value.(*pointItem[T])
		if c.expired(item.timestamp) {
			continue
		}
		pairs = append(pairs, pair{coord: key.coordinate(), value: item.value})
	}
	c.mu.Unlock()

	return func(yield func(geom.Coordinate, T) bool) {
		for _, p := range pairs {
			if !yield(p.coord, p.value) {
				return
			}
		}
	}
}

// Stats returns a snapshot of the cache statistics.
func (c *PointCache[T]) Stats() StatsSummary {
	return c.stats.Summary()
}

func (c *PointCache[T]) expired(timestamp time.Time) bool {
	if c.opts.TTL <= 0 {
		return false
	}
	return c.now().Sub(timestamp) > c.opts.TTL
}

func (c *PointCache[T]) removeElement(element *list.Element) {
	c.evictList.Remove(element)
	item := element.Value.(*pointItem[T])
	delete(c.items, item.key)
}
