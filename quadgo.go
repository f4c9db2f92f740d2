// Package quadgo provides an embedded spatial repository for biome
// placements keyed by 2D world coordinates.
//
// Quadgo layers caching and consensus over a spatial tree:
//
//   - Persistent (structurally shared) quadtree over immutable placements
//   - Coordinate-keyed point cache with LRU+TTL eviction
//   - Range cache for repeated bounds queries, with optional LZ4/ZSTD payload compression
//   - Grid-aligned cluster consensus for fast approximate point answers
//   - Metadata filtering with a Roaring Bitmap inverted index
//   - Memory accounting and background scan throttling via resource.Controller
//
// # Quick Start
//
// Create a repository spanning the world bounds:
//
//	ctx := context.Background()
//	world := geom.NewBounds(-1024, -1024, 1024, 1024)
//
//	repo, err := quadgo.New[string](world, quadgo.DefaultConfig())
//	if err != nil {
//	    panic(err)
//	}
//
// Store and resolve placements:
//
//	if err := repo.SetBiomeAt(ctx, geom.Coordinate{X: 100, Z: -40}, "desert"); err != nil {
//	    panic(err)
//	}
//
//	biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 102, Z: -38})
//
// Query a region, optionally filtered by placement metadata:
//
//	results, err := repo.GetBiomesInBounds(ctx, geom.NewBounds(0, -128, 256, 128),
//	    func(o *quadgo.QueryOptions) {
//	        o.Filters = metadata.NewFilterSet(metadata.Eq("dimension", metadata.String("overworld")))
//	    })
//
// # Read Protocol
//
// Point lookups consult layers cheapest-first: the point cache, then cluster
// consensus (when enabled), then a bounded nearest-placement scan of the
// tree. Tree answers populate the point cache on the way out. Range queries
// consult the range cache before scanning the tree and populate both caches
// with what they find. Cache population is best-effort: a cache fault is
// logged and the answer is served uncached.
//
// # Concurrency
//
// All repository operations are safe for concurrent use.
package quadgo

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hupe1980/quadgo/cache"
	"github.com/hupe1980/quadgo/cluster"
	"github.com/hupe1980/quadgo/codec"
	"github.com/hupe1980/quadgo/geom"
	"github.com/hupe1980/quadgo/metadata"
	"github.com/hupe1980/quadgo/quadtree"
	"github.com/hupe1980/quadgo/resource"
)

var (
	// ErrNotFound is returned when an item is not found.
	ErrNotFound = errors.New("not found")
)

// LookupSource identifies the layer that answered a point lookup.
type LookupSource string

const (
	// SourcePointCache marks answers served from the point cache.
	SourcePointCache LookupSource = "point_cache"

	// SourceCluster marks answers served from cluster consensus.
	SourceCluster LookupSource = "cluster"

	// SourceTree marks answers resolved by scanning the tree.
	SourceTree LookupSource = "tree"

	// SourceNone marks lookups no layer could answer.
	SourceNone LookupSource = "none"
)

// Quadgo is a spatial biome repository combining a quadtree index with
// point, range and cluster cache layers.
type Quadgo[T comparable] struct {
	cfg   Config
	world geom.Bounds

	tree     *quadtree.Index[T]
	points   *cache.PointCache[T]
	ranges   *cache.RangeCache[T]
	clusters *cluster.Index[T]
	meta     *metadata.InvertedIndex

	seq          atomic.Uint32
	lookupRadius float64

	controller *resource.Controller
	metrics    MetricsCollector
	logger     *Logger
}

// New creates a repository of T-identified placements spanning world.
func New[T comparable](world geom.Bounds, cfg Config, optFns ...Option) (*Quadgo[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := applyOptions(optFns)

	// Set codec (default if not specified)
	c := opts.codec
	if c == nil {
		c = codec.Default
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}

	compression := cache.CompressionNone
	if cfg.CompressionEnabled {
		compression = opts.compression
	}

	q := &Quadgo[T]{
		cfg:   cfg,
		world: world,
		tree:  quadtree.NewIndex[T](world, opts.treeOptions...),
		meta:  metadata.NewInvertedIndex(),
		points: cache.NewPointCache[T](func(o *cache.Options) {
			o.MaxEntries = cfg.MaxSpatialEntries
			o.TTL = cfg.TTL
		}),
		ranges: cache.NewRangeCache[T](func(o *cache.Options) {
			o.MaxEntries = cfg.MaxQueryEntries
			o.TTL = cfg.TTL
			o.Compression = compression
			o.Codec = c
			o.Controller = opts.controller
		}),
		clusters: cluster.New[T](func(o *cluster.Options) {
			o.GridSize = cfg.GridSize
			o.TTL = cfg.TTL
		}),
		lookupRadius: opts.lookupRadius,
		controller:   opts.controller,
		metrics:      opts.metricsCollector,
		logger:       opts.logger,
	}

	return q, nil
}

// GetBiomeAt resolves the biome at c, consulting layers cheapest-first:
// the point cache, then cluster consensus (when enabled), then a bounded
// nearest-placement scan of the tree. Tree answers populate the point cache.
// Returns ErrNotFound when no placement lies within the lookup radius.
func (q *Quadgo[T]) GetBiomeAt(ctx context.Context, c geom.Coordinate) (T, error) {
	start := time.Now()

	if value, confidence, ok := q.points.Get(c); ok {
		q.metrics.RecordPointLookup(time.Since(start), SourcePointCache, nil)
		q.logger.LogPointLookup(ctx, c, SourcePointCache, confidence, nil)
		return value, nil
	}

	if q.cfg.EnableClustering {
		if cl, ok := q.clusters.Get(c); ok {
			q.metrics.RecordPointLookup(time.Since(start), SourceCluster, nil)
			q.logger.LogPointLookup(ctx, c, SourceCluster, cl.Confidence, nil)
			return cl.DominantValue, nil
		}
	}

	if p, ok := q.tree.FindNearest(c, q.lookupRadius); ok {
		confidence := lookupConfidence(c.Distance(p.Coordinate), q.lookupRadius)
		q.points.Set(c, p.ID, confidence)
		q.metrics.RecordPointLookup(time.Since(start), SourceTree, nil)
		q.logger.LogPointLookup(ctx, c, SourceTree, confidence, nil)
		return p.ID, nil
	}

	var zero T
	q.metrics.RecordPointLookup(time.Since(start), SourceNone, ErrNotFound)
	q.logger.LogPointLookup(ctx, c, SourceNone, 0, ErrNotFound)
	return zero, ErrNotFound
}

// lookupConfidence scores a tree answer by its distance from the queried
// coordinate, from 1.0 at the exact point down to 0.0 at the radius edge.
// An unbounded radius always scores 1.0.
func lookupConfidence(distance, radius float64) float64 {
	if radius <= 0 {
		return 1.0
	}
	if distance >= radius {
		return 0.0
	}
	return 1.0 - distance/radius
}

// SetOptions contains options for SetBiomeAt.
type SetOptions struct {
	// Confidence is stored with the point cache entry written alongside the
	// placement. Default: 1.0.
	Confidence float64

	// Radius is the placement's area of influence in world units.
	Radius float64

	// Priority ranks overlapping placements.
	Priority int

	// Metadata is attached to the placement and drives filtered queries.
	Metadata metadata.Document
}

// SetBiomeAt stores value as a new placement at c and refreshes the point
// cache entry for that cell.
func (q *Quadgo[T]) SetBiomeAt(ctx context.Context, c geom.Coordinate, value T, optFns ...func(o *SetOptions)) error {
	opts := SetOptions{
		Confidence: 1.0,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	p := geom.Placement[T]{
		ID:         value,
		Coordinate: c,
		Radius:     opts.Radius,
		Priority:   opts.Priority,
		Metadata:   opts.Metadata,
	}
	return q.insert(ctx, p, opts.Confidence)
}

// Insert stores a placement. Placements are immutable once stored; a stale
// location is superseded by inserting a fresh placement, not by mutation.
func (q *Quadgo[T]) Insert(ctx context.Context, p geom.Placement[T]) error {
	return q.insert(ctx, p, 1.0)
}

// insert is the shared write path. It stamps the placement, adds it to the
// tree and metadata index, and refreshes the point cache entry for its cell.
func (q *Quadgo[T]) insert(ctx context.Context, p geom.Placement[T], confidence float64) error {
	start := time.Now()

	if p.PlacedAt.IsZero() {
		p.PlacedAt = time.Now()
	}
	p.Metadata = metadata.CloneIfNeeded(p.Metadata)
	p.Seq = q.seq.Add(1)

	var err error
	if q.tree.Insert(p) {
		q.meta.Add(p.Seq, p.Metadata)
		q.points.Set(p.Coordinate, p.ID, confidence)
	} else {
		err = &RepositoryError{Op: "insert", cause: ErrOutOfBounds}
	}

	duration := time.Since(start)
	q.metrics.RecordInsert(duration, err)
	q.logger.LogInsert(ctx, p.Coordinate, err)
	return err
}

// QueryOptions contains options for GetBiomesInBounds.
type QueryOptions struct {
	// Filters restricts results to placements whose metadata matches all
	// conditions (AND logic). Nil matches everything.
	Filters *metadata.FilterSet
}

// GetBiomesInBounds returns the placements inside bounds, ordered by
// distance from the bounds center. The range cache answers repeated queries
// when enabled; misses scan the tree and populate both caches.
func (q *Quadgo[T]) GetBiomesInBounds(ctx context.Context, bounds geom.Bounds, optFns ...func(o *QueryOptions)) ([]geom.QueryResult[T], error) {
	start := time.Now()
	opts := QueryOptions{
		Filters: nil,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if q.cfg.EnableQueryCache {
		if results, ok := q.ranges.Get(bounds, opts.Filters); ok {
			q.metrics.RecordRangeQuery(time.Since(start), true, len(results), nil)
			q.logger.LogRangeQuery(ctx, bounds, len(results), true, nil)
			return results, nil
		}
	}

	results := q.materialize(bounds, opts.Filters)
	q.populate(ctx, bounds, opts.Filters, results)

	duration := time.Since(start)
	q.metrics.RecordRangeQuery(duration, false, len(results), nil)
	q.logger.LogRangeQuery(ctx, bounds, len(results), false, nil)
	return results, nil
}

// materialize answers a range query from the tree. Results are sorted by
// distance from the bounds center, with coordinate order breaking ties.
func (q *Quadgo[T]) materialize(bounds geom.Bounds, filters *metadata.FilterSet) []geom.QueryResult[T] {
	placements := q.filterPlacements(q.tree.Query(bounds), filters)

	center := bounds.Center()
	results := make([]geom.QueryResult[T], 0, len(placements))
	for _, p := range placements {
		results = append(results, geom.QueryResult[T]{
			ID:         p.ID,
			Coordinate: p.Coordinate,
			Distance:   p.Coordinate.Distance(center),
			Confidence: 1.0,
		})
	}

	slices.SortFunc(results, func(a, b geom.QueryResult[T]) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Coordinate.X, b.Coordinate.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Coordinate.Z, b.Coordinate.Z)
	})

	return results
}

// filterPlacements drops placements whose metadata does not match filters.
// Equality and membership filters compile to a bitmap answered by the
// inverted index; other operators fall back to direct document matching.
func (q *Quadgo[T]) filterPlacements(placements []geom.Placement[T], filters *metadata.FilterSet) []geom.Placement[T] {
	if filters == nil || len(filters.Filters) == 0 {
		return placements
	}

	matched := placements[:0]
	if bm := q.meta.CompileFilter(filters); bm != nil {
		for _, p := range placements {
			if bm.Contains(p.Seq) {
				matched = append(matched, p)
			}
		}
		return matched
	}

	for _, p := range placements {
		if filters.Matches(p.Metadata) {
			matched = append(matched, p)
		}
	}
	return matched
}

// populate writes a materialized answer back to the caches. Cache faults are
// logged and never fail the read.
func (q *Quadgo[T]) populate(ctx context.Context, bounds geom.Bounds, filters *metadata.FilterSet, results []geom.QueryResult[T]) {
	if q.cfg.EnableQueryCache {
		if err := q.ranges.Set(bounds, filters, results); err != nil {
			q.logger.LogCachePopulate(ctx, "range", &CacheError{Op: "populate", cause: err})
		}
	}

	for _, r := range results {
		if bounds.Contains(r.Coordinate) {
			q.points.Set(r.Coordinate, r.ID, r.Confidence)
		}
	}
}

// SetBiomesInBounds seeds the caches with an externally computed answer for
// bounds, e.g. from a bulk generation pass. Point entries are refreshed for
// every result inside bounds, including when range caching fails or is
// disabled.
func (q *Quadgo[T]) SetBiomesInBounds(ctx context.Context, bounds geom.Bounds, results []geom.QueryResult[T]) error {
	var err error
	if q.cfg.EnableQueryCache {
		if cerr := q.ranges.Set(bounds, nil, results); cerr != nil {
			err = &CacheError{Op: "set_biomes_in_bounds", cause: cerr}
		}
	}

	for _, r := range results {
		if bounds.Contains(r.Coordinate) {
			q.points.Set(r.Coordinate, r.ID, r.Confidence)
		}
	}

	q.logger.LogSeed(ctx, bounds, len(results), err)
	return err
}

// GetCluster returns the cluster for the grid cell containing c. Returns
// ErrClusteringDisabled when clustering is off, and ErrNotFound when the
// cell has no fresh cluster.
func (q *Quadgo[T]) GetCluster(c geom.Coordinate) (cluster.Cluster[T], error) {
	if !q.cfg.EnableClustering {
		return cluster.Cluster[T]{}, ErrClusteringDisabled
	}

	cl, ok := q.clusters.Get(c)
	if !ok {
		return cluster.Cluster[T]{}, ErrNotFound
	}

	return cl, nil
}

// UpdateCluster recomputes the cluster for the grid cell containing c from
// the given value distribution. Distributions without a single positive
// count are ignored and leave the cell untouched.
func (q *Quadgo[T]) UpdateCluster(ctx context.Context, c geom.Coordinate, distribution map[T]int) error {
	if !q.cfg.EnableClustering {
		return ErrClusteringDisabled
	}

	start := time.Now()
	cl, ok := q.clusters.Update(c, distribution)
	duration := time.Since(start)
	q.metrics.RecordClusterUpdate(duration, nil)
	if ok {
		q.logger.LogClusterUpdate(ctx, c, cl.Confidence, nil)
	}
	return nil
}

// GetNearbyClusters returns all fresh clusters whose centers lie within
// radius of c.
func (q *Quadgo[T]) GetNearbyClusters(c geom.Coordinate, radius float64) ([]cluster.Cluster[T], error) {
	if !q.cfg.EnableClustering {
		return nil, ErrClusteringDisabled
	}
	return q.clusters.Nearby(c, radius), nil
}

// Clear drops every cache layer: point entries, range entries and clusters.
// Stored placements are untouched; subsequent reads repopulate from the
// tree.
func (q *Quadgo[T]) Clear(ctx context.Context) {
	removed := q.points.Len() + q.ranges.Len() + q.clusters.Len()
	q.points.Clear()
	q.ranges.Clear()
	q.clusters.Clear()
	q.logger.LogClear(ctx, removed)
}

// ClearRegion drops cached state intersecting bounds from every cache layer
// and returns the number of entries removed.
func (q *Quadgo[T]) ClearRegion(ctx context.Context, bounds geom.Bounds) int {
	removed := q.points.ClearRegion(bounds)
	removed += q.ranges.ClearRegion(bounds)
	removed += q.clusters.ClearRegion(bounds)
	q.logger.LogClearRegion(ctx, bounds, removed)
	return removed
}

// EvictExpired sweeps expired entries from every cache layer and returns the
// number removed. Expiry is otherwise lazy; call this periodically to bound
// the memory held by cold entries.
func (q *Quadgo[T]) EvictExpired(ctx context.Context) int {
	start := time.Now()
	removed := q.points.EvictExpired()
	removed += q.ranges.EvictExpired()
	removed += q.clusters.EvictExpired()
	duration := time.Since(start)
	q.metrics.RecordEvict(duration, removed)
	q.logger.LogEvict(ctx, removed)
	return removed
}

// Optimize rebuilds cluster consensus from the current point cache contents
// and returns the number of clusters rebuilt. It competes for the
// controller's background slots and is throttled by its scan limit, so a
// canceled ctx aborts the pass.
func (q *Quadgo[T]) Optimize(ctx context.Context) (int, error) {
	if !q.cfg.EnableClustering {
		return 0, nil
	}

	start := time.Now()
	if err := q.controller.AcquireBackground(ctx); err != nil {
		q.metrics.RecordOptimize(time.Since(start), 0, err)
		q.logger.LogOptimize(ctx, 0, err)
		return 0, err
	}
	defer q.controller.ReleaseBackground()

	if err := q.controller.WaitScan(ctx, q.points.Len()); err != nil {
		q.metrics.RecordOptimize(time.Since(start), 0, err)
		q.logger.LogOptimize(ctx, 0, err)
		return 0, err
	}

	updated := q.clusters.Optimize(q.points.All())
	duration := time.Since(start)
	q.metrics.RecordOptimize(duration, updated, nil)
	q.logger.LogOptimize(ctx, updated, nil)
	return updated, nil
}

// WarmupRegion eagerly materializes bounds from the tree and populates the
// caches, so that subsequent reads in the region are cache hits. Returns the
// number of placements populated.
func (q *Quadgo[T]) WarmupRegion(ctx context.Context, bounds geom.Bounds) (int, error) {
	start := time.Now()
	if err := q.controller.AcquireBackground(ctx); err != nil {
		q.metrics.RecordWarmup(time.Since(start), 0, err)
		q.logger.LogWarmup(ctx, bounds, 0, err)
		return 0, err
	}
	defer q.controller.ReleaseBackground()

	results := q.materialize(bounds, nil)
	if err := q.controller.WaitScan(ctx, len(results)); err != nil {
		q.metrics.RecordWarmup(time.Since(start), 0, err)
		q.logger.LogWarmup(ctx, bounds, 0, err)
		return 0, err
	}

	q.populate(ctx, bounds, nil, results)
	duration := time.Since(start)
	q.metrics.RecordWarmup(duration, len(results), nil)
	q.logger.LogWarmup(ctx, bounds, len(results), nil)
	return len(results), nil
}

// PreloadCluster eagerly builds clusters for every grid cell with placements
// inside the square of side 2*radius around center. Returns the number of
// clusters built.
func (q *Quadgo[T]) PreloadCluster(ctx context.Context, center geom.Coordinate, radius float64) (int, error) {
	if !q.cfg.EnableClustering {
		return 0, ErrClusteringDisabled
	}

	start := time.Now()
	if err := q.controller.AcquireBackground(ctx); err != nil {
		q.metrics.RecordWarmup(time.Since(start), 0, err)
		q.logger.LogPreload(ctx, center, 0, err)
		return 0, err
	}
	defer q.controller.ReleaseBackground()

	placements := q.tree.Query(geom.Square(center, radius))
	if err := q.controller.WaitScan(ctx, len(placements)); err != nil {
		q.metrics.RecordWarmup(time.Since(start), 0, err)
		q.logger.LogPreload(ctx, center, 0, err)
		return 0, err
	}

	distributions := make(map[geom.Coordinate]map[T]int)
	for _, p := range placements {
		key := q.clusters.GridKey(p.Coordinate)
		dist := distributions[key]
		if dist == nil {
			dist = make(map[T]int)
			distributions[key] = dist
		}
		dist[p.ID]++
	}

	updated := 0
	for key, dist := range distributions {
		if _, ok := q.clusters.Update(key, dist); ok {
			updated++
		}
	}

	duration := time.Since(start)
	q.metrics.RecordWarmup(duration, updated, nil)
	q.logger.LogPreload(ctx, center, updated, nil)
	return updated, nil
}

// Statistics is a point-in-time snapshot of repository state across layers.
type Statistics struct {
	Tree             quadtree.Stats     `json:"tree"`
	PointCache       cache.StatsSummary `json:"point_cache"`
	RangeCache       cache.StatsSummary `json:"range_cache"`
	Clusters         int                `json:"clusters"`
	MemoryUsage      int64              `json:"memory_usage_bytes"`
	CompressionRatio float64            `json:"compression_ratio"`
}

// Stats returns statistics about the tree and cache layers. Computing the
// tree statistics is a full traversal.
func (q *Quadgo[T]) Stats() Statistics {
	rangeStats := q.ranges.Stats()
	return Statistics{
		Tree:             q.tree.Stats(),
		PointCache:       q.points.Stats(),
		RangeCache:       rangeStats,
		Clusters:         q.clusters.Len(),
		MemoryUsage:      q.ranges.MemoryUsage(),
		CompressionRatio: rangeStats.CompressionRatio,
	}
}

// Bounds returns the world bounds the repository spans.
func (q *Quadgo[T]) Bounds() geom.Bounds {
	return q.world
}

// Len returns the number of stored placements.
func (q *Quadgo[T]) Len() int {
	return q.tree.Len()
}
