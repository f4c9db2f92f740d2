// Package cluster implements a coarse grid-based aggregation layer over
// point lookups. Each grid cell holds the dominant value observed in that
// cell plus a confidence score, enabling fast approximate answers without
// consulting the spatial tree.
package cluster

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/quadgo/geom"
)

// Options configures a cluster index.
type Options struct {
	// GridSize is the side length of a grid cell in world units.
	GridSize float64

	// TTL is the cluster time-to-live measured from its last update.
	// Expired clusters are treated as absent. Zero disables expiry.
	TTL time.Duration
}

// DefaultOptions returns the default cluster index options.
func DefaultOptions() Options {
	return Options{
		GridSize: 64,
		TTL:      5 * time.Minute,
	}
}

// Cluster is the aggregate for one grid cell.
type Cluster[T comparable] struct {
	Center        geom.Coordinate `json:"center"`
	Radius        float64         `json:"radius"`
	DominantValue T               `json:"dominant_value"`
	Distribution  map[T]int       `json:"distribution"`
	Confidence    float64         `json:"confidence"`
	LastUpdate    time.Time       `json:"last_update"`
}

// snapshot returns a copy safe to hand out, with its own distribution map.
func (c *Cluster[T]) snapshot() Cluster[T] {
	out := *c
	out.Distribution = make(map[T]int, len(c.Distribution))
	for v, n := range c.Distribution {
		out.Distribution[v] = n
	}
	return out
}

// cellKey identifies a grid cell by its integer cell indices.
type cellKey struct {
	x, z int64
}

// Index aggregates values into grid-cell clusters. All methods are safe for
// concurrent use.
type Index[T comparable] struct {
	mu       sync.RWMutex
	opts     Options
	clusters map[cellKey]*Cluster[T]

	now func() time.Time
}

// New creates a new cluster index.
func New[T comparable](optFns ...func(*Options)) *Index[T] {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.GridSize <= 0 {
		opts.GridSize = DefaultOptions().GridSize
	}

	return &Index[T]{
		opts:     opts,
		clusters: make(map[cellKey]*Cluster[T]),
		now:      time.Now,
	}
}

// GridSize returns the configured cell side length.
func (i *Index[T]) GridSize() float64 {
	return i.opts.GridSize
}

// GridKey returns the origin corner of the grid cell containing c, i.e.
// (floor(x/gridSize)*gridSize, floor(z/gridSize)*gridSize).
func (i *Index[T]) GridKey(c geom.Coordinate) geom.Coordinate {
	return i.cellOrigin(i.cellKeyFor(c))
}

func (i *Index[T]) cellKeyFor(c geom.Coordinate) cellKey {
	return cellKey{
		x: int64(math.Floor(c.X / i.opts.GridSize)),
		z: int64(math.Floor(c.Z / i.opts.GridSize)),
	}
}

func (i *Index[T]) cellOrigin(key cellKey) geom.Coordinate {
	return geom.Coordinate{
		X: float64(key.x) * i.opts.GridSize,
		Z: float64(key.z) * i.opts.GridSize,
	}
}

// Update stores or overwrites the cluster for the cell containing c from
// the given value distribution. Distributions without a single positive
// count are ignored and leave the cell untouched.
func (i *Index[T]) Update(c geom.Coordinate, distribution map[T]int) (Cluster[T], bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.updateLocked(c, distribution)
}

func (i *Index[T]) updateLocked(c geom.Coordinate, distribution map[T]int) (Cluster[T], bool) {
	value, maxCount, total := dominant(distribution)
	if total == 0 {
		return Cluster[T]{}, false
	}

	key := i.cellKeyFor(c)
	origin := i.cellOrigin(key)
	half := i.opts.GridSize / 2

	cluster := &Cluster[T]{
		Center:        geom.Coordinate{X: origin.X + half, Z: origin.Z + half},
		Radius:        half,
		DominantValue: value,
		Distribution:  cloneDistribution(distribution),
		Confidence:    float64(maxCount) / float64(total),
		LastUpdate:    i.now(),
	}
	i.clusters[key] = cluster

	return cluster.snapshot(), true
}

// Get returns the cluster for the cell containing c if present and not
// TTL-expired.
func (i *Index[T]) Get(c geom.Coordinate) (Cluster[T], bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	cluster, found := i.clusters[i.cellKeyFor(c)]
	if !found || i.expired(cluster.LastUpdate) {
		return Cluster[T]{}, false
	}

	return cluster.snapshot(), true
}

// Nearby returns all non-expired clusters whose center lies within radius
// of c, ordered by ascending distance. Equidistant clusters are ordered by
// center coordinate so the result is deterministic.
func (i *Index[T]) Nearby(c geom.Coordinate, radius float64) []Cluster[T] {
	i.mu.RLock()
	defer i.mu.RUnlock()

	type candidate struct {
		cluster  Cluster[T]
		distance float64
	}

	var candidates []candidate
	for _, cluster := range i.clusters {
		if i.expired(cluster.LastUpdate) {
			continue
		}
		if d := cluster.Center.Distance(c); d <= radius {
			candidates = append(candidates, candidate{cluster: cluster.snapshot(), distance: d})
		}
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if n := cmp.Compare(a.distance, b.distance); n != 0 {
			return n
		}
		if n := cmp.Compare(a.cluster.Center.X, b.cluster.Center.X); n != 0 {
			return n
		}
		return cmp.Compare(a.cluster.Center.Z, b.cluster.Center.Z)
	})

	clusters := make([]Cluster[T], len(candidates))
	for idx, cand := range candidates {
		clusters[idx] = cand.cluster
	}

	return clusters
}

// Optimize recomputes the distribution of every existing cluster from the
// given point observations and returns the number of clusters refreshed.
// Cells without a cluster are not created, and clusters with no matching
// observations are left unchanged.
func (i *Index[T]) Optimize(points iter.Seq2[geom.Coordinate, T]) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	counts := make(map[cellKey]map[T]int)
	for coord, value := range points {
		key := i.cellKeyFor(coord)
		if _, exists := i.clusters[key]; !exists {
			continue
		}

		distribution := counts[key]
		if distribution == nil {
			distribution = make(map[T]int)
			counts[key] = distribution
		}
		distribution[value]++
	}

	updated := 0
	for key, distribution := range counts {
		if _, ok := i.updateLocked(i.cellOrigin(key), distribution); ok {
			updated++
		}
	}

	return updated
}

// EvictExpired removes every TTL-expired cluster and returns the number
// removed.
func (i *Index[T]) EvictExpired() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for key, cluster := range i.clusters {
		if i.expired(cluster.LastUpdate) {
			delete(i.clusters, key)
			removed++
		}
	}

	return removed
}

// Clear removes all clusters.
func (i *Index[T]) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.clusters = make(map[cellKey]*Cluster[T])
}

// ClearRegion removes all clusters whose center lies inside bounds and
// returns the number removed.
func (i *Index[T]) ClearRegion(bounds geom.Bounds) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for key, cluster := range i.clusters {
		if bounds.Contains(cluster.Center) {
			delete(i.clusters, key)
			removed++
		}
	}

	return removed
}

// Len returns the current number of clusters, expired ones included.
func (i *Index[T]) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.clusters)
}

func (i *Index[T]) expired(lastUpdate time.Time) bool {
	if i.opts.TTL <= 0 {
		return false
	}
	return i.now().Sub(lastUpdate) > i.opts.TTL
}

// dominant returns the value with the highest count, its count and the
// total count. Non-positive counts are skipped. Ties resolve to the value
// with the lexicographically smallest string form so the winner does not
// depend on map iteration order.
func dominant[T comparable](distribution map[T]int) (T, int, int) {
	var (
		best      T
		bestKey   string
		bestCount int
		total     int
	)

	for value, count := range distribution {
		if count <= 0 {
			continue
		}
		total += count

		key := fmt.Sprint(value)
		if count > bestCount || (count == bestCount && key < bestKey) {
			best = value
			bestKey = key
			bestCount = count
		}
	}

	return best, bestCount, total
}

func cloneDistribution[T comparable](distribution map[T]int) map[T]int {
	clone := make(map[T]int, len(distribution))
	for value, count := range distribution {
		if count <= 0 {
			continue
		}
		clone[value] = count
	}
	return clone
}
