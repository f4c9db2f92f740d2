package quadgo

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/quadgo/geom"
	"github.com/hupe1980/quadgo/metadata"
	"github.com/hupe1980/quadgo/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadgo(t *testing.T) {
	ctx := context.Background()
	world := geom.NewBounds(-1024, -1024, 1024, 1024)

	t.Run("SetAndGet", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		c := geom.Coordinate{X: 100, Z: -40}
		require.NoError(t, repo.SetBiomeAt(ctx, c, "desert"))

		biome, err := repo.GetBiomeAt(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, "desert", biome)
	})

	t.Run("ResolveFromTree", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		repo, err := New[string](world, DefaultConfig(), WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 100, Z: -40}, "desert"))

		// A nearby coordinate has no cache entry and no cluster, so the tree
		// answers and refreshes the point cache on the way out.
		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 102, Z: -38})
		require.NoError(t, err)
		assert.Equal(t, "desert", biome)
		assert.Equal(t, int64(1), collector.TreeResolves.Load())

		biome, err = repo.GetBiomeAt(ctx, geom.Coordinate{X: 102, Z: -38})
		require.NoError(t, err)
		assert.Equal(t, "desert", biome)
		assert.Equal(t, int64(1), collector.PointCacheHits.Load())
		assert.Equal(t, int64(2), collector.PointLookupCount.Load())
	})

	t.Run("NotFound", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		repo, err := New[string](world, DefaultConfig(), WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 100, Z: -40}, "desert"))

		_, err = repo.GetBiomeAt(ctx, geom.Coordinate{X: 900, Z: 900})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, int64(1), collector.PointLookupMisses.Load())
	})

	t.Run("LookupRadius", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig(), WithLookupRadius(5))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 0, Z: 0}, "plains"))

		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 3, Z: 0})
		require.NoError(t, err)
		assert.Equal(t, "plains", biome)

		_, err = repo.GetBiomeAt(ctx, geom.Coordinate{X: 8, Z: 0})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		err = repo.SetBiomeAt(ctx, geom.Coordinate{X: 5000, Z: 0}, "void")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutOfBounds)

		var repoErr *RepositoryError
		require.ErrorAs(t, err, &repoErr)
		assert.Equal(t, "insert", repoErr.Op)

		assert.Equal(t, 0, repo.Len())
	})

	t.Run("InsertPlacement", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		p := geom.Placement[string]{
			ID:         "jungle",
			Coordinate: geom.Coordinate{X: -200, Z: 300},
			Radius:     64,
			Priority:   2,
			Metadata:   metadata.Document{"dimension": metadata.String("overworld")},
		}
		require.NoError(t, repo.Insert(ctx, p))
		assert.Equal(t, 1, repo.Len())

		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: -200, Z: 300})
		require.NoError(t, err)
		assert.Equal(t, "jungle", biome)

		results, err := repo.GetBiomesInBounds(ctx, geom.NewBounds(-256, 256, -128, 384), func(o *QueryOptions) {
			o.Filters = metadata.NewFilterSet(metadata.Eq("dimension", metadata.String("overworld")))
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "jungle", results[0].ID)
	})
}

func TestQuadgoRangeQueries(t *testing.T) {
	ctx := context.Background()
	world := geom.NewBounds(-1024, -1024, 1024, 1024)

	t.Run("CacheOnRepeat", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		repo, err := New[string](world, DefaultConfig(), WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 50, Z: 50}, "forest"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 300, Z: 300}, "desert"))

		bounds := geom.NewBounds(0, 0, 100, 100)
		results, err := repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		require.Len(t, results, 2)

		// Ordered by distance from the bounds center (50, 50).
		assert.Equal(t, "forest", results[0].ID)
		assert.Equal(t, "plains", results[1].ID)

		cached, err := repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		assert.Equal(t, results, cached)
		assert.Equal(t, int64(1), collector.RangeCacheHits.Load())
		assert.Equal(t, int64(2), collector.RangeQueryCount.Load())

		stats := repo.Stats()
		assert.Equal(t, int64(1), stats.RangeCache.Hits)
		assert.Equal(t, int64(1), stats.RangeCache.Misses)
		assert.Equal(t, int64(1), stats.RangeCache.Sets)
	})

	t.Run("Filters", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains", func(o *SetOptions) {
			o.Metadata = metadata.Document{"dimension": metadata.String("overworld")}
		}))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 20, Z: 20}, "crimson_forest", func(o *SetOptions) {
			o.Metadata = metadata.Document{"dimension": metadata.String("nether")}
		}))

		bounds := geom.NewBounds(0, 0, 100, 100)

		results, err := repo.GetBiomesInBounds(ctx, bounds, func(o *QueryOptions) {
			o.Filters = metadata.NewFilterSet(metadata.Eq("dimension", metadata.String("overworld")))
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "plains", results[0].ID)

		results, err = repo.GetBiomesInBounds(ctx, bounds, func(o *QueryOptions) {
			o.Filters = metadata.NewFilterSet(metadata.In("dimension",
				metadata.String("overworld"), metadata.String("nether")))
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "crimson_forest", results[0].ID)
		assert.Equal(t, "plains", results[1].ID)
	})

	t.Run("FilterFallback", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		doc := metadata.Document{"dimension": metadata.String("overworld")}
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains", func(o *SetOptions) {
			o.Metadata = doc
		}))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 20, Z: 20}, "crimson_forest", func(o *SetOptions) {
			o.Metadata = metadata.Document{"dimension": metadata.String("nether")}
		}))

		// Mutating the caller's document after insert must not leak into the
		// stored placement.
		doc["dimension"] = metadata.String("nether")

		// Ne cannot be answered by the inverted index and falls back to
		// per-document matching.
		results, err := repo.GetBiomesInBounds(ctx, geom.NewBounds(0, 0, 100, 100), func(o *QueryOptions) {
			o.Filters = metadata.NewFilterSet(metadata.Ne("dimension", metadata.String("nether")))
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "plains", results[0].ID)
	})

	t.Run("Seed", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		bounds := geom.NewBounds(0, 0, 128, 128)
		seed := []geom.QueryResult[string]{
			{ID: "tundra", Coordinate: geom.Coordinate{X: 16, Z: 16}, Distance: 0, Confidence: 0.9},
		}
		require.NoError(t, repo.SetBiomesInBounds(ctx, bounds, seed))

		// The tree is empty, so both answers must come from the caches.
		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 16, Z: 16})
		require.NoError(t, err)
		assert.Equal(t, "tundra", biome)

		results, err := repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "tundra", results[0].ID)
		assert.InDelta(t, 0.9, results[0].Confidence, 1e-9)
	})

	t.Run("QueryCacheDisabled", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		cfg := DefaultConfig()
		cfg.EnableQueryCache = false

		repo, err := New[string](world, cfg, WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))

		bounds := geom.NewBounds(0, 0, 64, 64)
		for i := 0; i < 2; i++ {
			results, err := repo.GetBiomesInBounds(ctx, bounds)
			require.NoError(t, err)
			require.Len(t, results, 1)
		}

		assert.Equal(t, int64(0), collector.RangeCacheHits.Load())
		assert.Equal(t, int64(2), collector.RangeQueryCount.Load())
	})

	t.Run("Compression", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CompressionEnabled = true

		repo, err := New[string](world, cfg)
		require.NoError(t, err)

		for i := 0; i < 32; i++ {
			c := geom.Coordinate{X: float64(i * 4), Z: float64(i * 4)}
			require.NoError(t, repo.SetBiomeAt(ctx, c, "plains"))
		}

		bounds := geom.NewBounds(0, 0, 128, 128)
		first, err := repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		require.Len(t, first, 32)

		second, err := repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		stats := repo.Stats()
		assert.Positive(t, stats.MemoryUsage)
		assert.Less(t, stats.CompressionRatio, 1.0)
	})
}

func TestQuadgoClusters(t *testing.T) {
	ctx := context.Background()
	world := geom.NewBounds(-1024, -1024, 1024, 1024)

	t.Run("Consensus", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		repo, err := New[string](world, DefaultConfig(), WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.UpdateCluster(ctx, geom.Coordinate{X: 32, Z: 32}, map[string]int{
			"plains": 8,
			"forest": 2,
		}))

		// The whole cell answers from consensus, without touching the tree.
		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10})
		require.NoError(t, err)
		assert.Equal(t, "plains", biome)
		assert.Equal(t, int64(1), collector.ClusterHits.Load())
		assert.Equal(t, int64(0), collector.TreeResolves.Load())
	})

	t.Run("GetAndNearby", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, repo.UpdateCluster(ctx, geom.Coordinate{X: 32, Z: 32}, map[string]int{
			"plains": 3,
			"desert": 1,
		}))

		cl, err := repo.GetCluster(geom.Coordinate{X: 5, Z: 5})
		require.NoError(t, err)
		assert.Equal(t, "plains", cl.DominantValue)
		assert.Equal(t, geom.Coordinate{X: 32, Z: 32}, cl.Center)
		assert.InDelta(t, 0.75, cl.Confidence, 1e-9)

		nearby, err := repo.GetNearbyClusters(geom.Coordinate{X: 0, Z: 0}, 200)
		require.NoError(t, err)
		require.Len(t, nearby, 1)
		assert.Equal(t, "plains", nearby[0].DominantValue)

		_, err = repo.GetCluster(geom.Coordinate{X: 500, Z: 500})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Preload", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 20, Z: 20}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: -10, Z: -10}, "desert"))

		updated, err := repo.PreloadCluster(ctx, geom.Coordinate{X: 0, Z: 0}, 64)
		require.NoError(t, err)
		assert.Equal(t, 2, updated)

		cl, err := repo.GetCluster(geom.Coordinate{X: 15, Z: 15})
		require.NoError(t, err)
		assert.Equal(t, "plains", cl.DominantValue)

		cl, err = repo.GetCluster(geom.Coordinate{X: -5, Z: -5})
		require.NoError(t, err)
		assert.Equal(t, "desert", cl.DominantValue)
	})

	t.Run("Optimize", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig(),
			WithResourceController(resource.NewController(resource.Config{
				MaxBackgroundWorkers:   1,
				ScanLimitEntriesPerSec: 100_000,
			})))
		require.NoError(t, err)

		// Seed a stale cluster, then refresh it from point observations.
		require.NoError(t, repo.UpdateCluster(ctx, geom.Coordinate{X: 5, Z: 5}, map[string]int{"desert": 1}))

		for i := 0; i < 8; i++ {
			c := geom.Coordinate{X: float64(i * 4), Z: float64(i * 4)}
			require.NoError(t, repo.SetBiomeAt(ctx, c, "plains"))
		}

		updated, err := repo.Optimize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, updated)

		cl, err := repo.GetCluster(geom.Coordinate{X: 5, Z: 5})
		require.NoError(t, err)
		assert.Equal(t, "plains", cl.DominantValue)
		assert.InDelta(t, 1.0, cl.Confidence, 1e-9)
	})

	t.Run("Disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableClustering = false

		repo, err := New[string](world, cfg)
		require.NoError(t, err)

		_, err = repo.GetCluster(geom.Coordinate{X: 0, Z: 0})
		assert.ErrorIs(t, err, ErrClusteringDisabled)

		err = repo.UpdateCluster(ctx, geom.Coordinate{X: 0, Z: 0}, map[string]int{"plains": 1})
		assert.ErrorIs(t, err, ErrClusteringDisabled)

		_, err = repo.GetNearbyClusters(geom.Coordinate{X: 0, Z: 0}, 100)
		assert.ErrorIs(t, err, ErrClusteringDisabled)

		_, err = repo.PreloadCluster(ctx, geom.Coordinate{X: 0, Z: 0}, 100)
		assert.ErrorIs(t, err, ErrClusteringDisabled)

		updated, err := repo.Optimize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, updated)

		// Point lookups skip the cluster layer entirely.
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 12, Z: 12})
		require.NoError(t, err)
		assert.Equal(t, "plains", biome)
	})
}

func TestQuadgoMaintenance(t *testing.T) {
	ctx := context.Background()
	world := geom.NewBounds(-1024, -1024, 1024, 1024)

	t.Run("Clear", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 200, Z: 200}, "desert"))
		_, err = repo.GetBiomesInBounds(ctx, geom.NewBounds(0, 0, 64, 64))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateCluster(ctx, geom.Coordinate{X: 10, Z: 10}, map[string]int{"plains": 1}))

		repo.Clear(ctx)

		stats := repo.Stats()
		assert.Equal(t, int64(0), stats.PointCache.CurrentSize)
		assert.Equal(t, int64(0), stats.RangeCache.CurrentSize)
		assert.Equal(t, 0, stats.Clusters)

		// Placements survive; reads repopulate from the tree.
		assert.Equal(t, 2, repo.Len())
		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10})
		require.NoError(t, err)
		assert.Equal(t, "plains", biome)
	})

	t.Run("ClearRegion", func(t *testing.T) {
		repo, err := New[string](world, DefaultConfig())
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 500, Z: 500}, "desert"))

		removed := repo.ClearRegion(ctx, geom.NewBounds(0, 0, 100, 100))
		assert.Equal(t, 1, removed)

		stats := repo.Stats()
		assert.Equal(t, int64(1), stats.PointCache.CurrentSize)
		assert.Equal(t, 2, repo.Len())
	})

	t.Run("EvictExpired", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TTL = time.Nanosecond

		repo, err := New[string](world, cfg)
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		_, err = repo.GetBiomesInBounds(ctx, geom.NewBounds(0, 0, 64, 64))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateCluster(ctx, geom.Coordinate{X: 10, Z: 10}, map[string]int{"plains": 1}))

		time.Sleep(5 * time.Millisecond)

		// One point entry, one range entry and one cluster, all expired.
		removed := repo.EvictExpired(ctx)
		assert.Equal(t, 3, removed)
	})

	t.Run("Warmup", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		repo, err := New[string](world, DefaultConfig(), WithMetricsCollector(collector))
		require.NoError(t, err)

		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10}, "plains"))
		require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 40, Z: 40}, "forest"))

		bounds := geom.NewBounds(0, 0, 64, 64)
		populated, err := repo.WarmupRegion(ctx, bounds)
		require.NoError(t, err)
		assert.Equal(t, 2, populated)
		assert.Equal(t, int64(1), collector.WarmupCount.Load())
		assert.Equal(t, int64(2), collector.WarmupPopulated.Load())

		// The warmed region answers from the caches.
		_, err = repo.GetBiomesInBounds(ctx, bounds)
		require.NoError(t, err)
		assert.Equal(t, int64(1), collector.RangeCacheHits.Load())

		biome, err := repo.GetBiomeAt(ctx, geom.Coordinate{X: 10, Z: 10})
		require.NoError(t, err)
		assert.Equal(t, "plains", biome)
		assert.Equal(t, int64(1), collector.PointCacheHits.Load())
	})
}

func TestQuadgoStats(t *testing.T) {
	ctx := context.Background()
	world := geom.NewBounds(-1024, -1024, 1024, 1024)

	repo, err := New[string](world, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, repo.SetBiomeAt(ctx, geom.Coordinate{X: 1, Z: 1}, "plains"))

	stats := repo.Stats()
	assert.Equal(t, 1, stats.Tree.TotalEntries)
	assert.Equal(t, int64(1), stats.PointCache.CurrentSize)
	assert.Equal(t, int64(1), stats.PointCache.Sets)
	assert.Equal(t, 0, stats.Clusters)

	assert.Equal(t, world, repo.Bounds())
	assert.Equal(t, 1, repo.Len())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxSpatialEntries = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxQueryEntries = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.EnableQueryCache = false
	require.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TTL = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.TTL = 0
	require.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GridSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.EnableClustering = false
	require.NoError(t, cfg.Validate())

	_, err := New[string](geom.NewBounds(-10, -10, 10, 10), Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
