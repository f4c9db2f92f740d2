package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/quadgo/geom"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0).UTC()}
}

func (f *fakeClock) Now() time.Time {
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

func at(x, z float64) geom.Coordinate {
	return geom.Coordinate{X: x, Z: z}
}

func TestGridKey(t *testing.T) {
	idx := New[string]() // grid size 64

	assert.Equal(t, at(0, 0), idx.GridKey(at(0, 0)))
	assert.Equal(t, at(0, 0), idx.GridKey(at(63.9, 63.9)))
	assert.Equal(t, at(64, 64), idx.GridKey(at(64, 64)))
	assert.Equal(t, at(128, 0), idx.GridKey(at(191, 12)))
	assert.Equal(t, at(-64, -64), idx.GridKey(at(-0.5, -63.9)))
}

func TestUpdateAndGet(t *testing.T) {
	idx := New[string]()

	cluster, ok := idx.Update(at(10, 10), map[string]int{"desert": 3, "plains": 1})
	require.True(t, ok)

	assert.Equal(t, "desert", cluster.DominantValue)
	assert.Equal(t, 0.75, cluster.Confidence)
	assert.Equal(t, at(32, 32), cluster.Center)
	assert.Equal(t, 32.0, cluster.Radius)
	assert.Equal(t, map[string]int{"desert": 3, "plains": 1}, cluster.Distribution)

	// Any coordinate in the same cell resolves to the same cluster.
	got, ok := idx.Get(at(63, 1))
	require.True(t, ok)
	assert.Equal(t, cluster.DominantValue, got.DominantValue)
	assert.Equal(t, cluster.Center, got.Center)

	// Neighboring cells are independent.
	_, ok = idx.Get(at(64, 0))
	assert.False(t, ok)
	assert.Equal(t, 1, idx.Len())
}

func TestUpdateIgnoresEmptyDistribution(t *testing.T) {
	idx := New[string]()

	_, ok := idx.Update(at(0, 0), nil)
	assert.False(t, ok)

	_, ok = idx.Update(at(0, 0), map[string]int{})
	assert.False(t, ok)

	_, ok = idx.Update(at(0, 0), map[string]int{"desert": 0})
	assert.False(t, ok)

	assert.Equal(t, 0, idx.Len())
}

func TestDominantTieBreak(t *testing.T) {
	idx := New[string]()

	// Run several times: map iteration order must not leak into the result.
	for i := 0; i < 20; i++ {
		cluster, ok := idx.Update(at(0, 0), map[string]int{"taiga": 2, "desert": 2, "plains": 1})
		require.True(t, ok)
		assert.Equal(t, "desert", cluster.DominantValue)
		assert.Equal(t, 0.4, cluster.Confidence)
	}
}

func TestClusterSnapshotsAreDetached(t *testing.T) {
	idx := New[string]()

	distribution := map[string]int{"desert": 2}
	cluster, ok := idx.Update(at(0, 0), distribution)
	require.True(t, ok)

	// Mutating the caller's map after the update changes nothing.
	distribution["desert"] = 100
	got, _ := idx.Get(at(0, 0))
	assert.Equal(t, 2, got.Distribution["desert"])

	// Mutating a returned snapshot changes nothing either.
	cluster.Distribution["desert"] = 50
	got, _ = idx.Get(at(0, 0))
	assert.Equal(t, 2, got.Distribution["desert"])
}

func TestClusterTTL(t *testing.T) {
	clock := newFakeClock()

	idx := New[string](func(o *Options) {
		o.TTL = time.Minute
	})
	idx.now = clock.Now

	_, ok := idx.Update(at(0, 0), map[string]int{"desert": 1})
	require.True(t, ok)

	_, ok = idx.Get(at(0, 0))
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)

	// Expired clusters read as absent but stay until evicted.
	_, ok = idx.Get(at(0, 0))
	assert.False(t, ok)
	assert.Equal(t, 1, idx.Len())

	removed := idx.EvictExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, idx.Len())
}

func TestNearby(t *testing.T) {
	clock := newFakeClock()

	idx := New[string](func(o *Options) {
		o.GridSize = 10
		o.TTL = time.Minute
	})
	idx.now = clock.Now

	// Centers at (5,5), (15,5), (35,5), (95,5).
	for _, x := range []float64{0, 10, 30, 90} {
		_, ok := idx.Update(at(x, 0), map[string]int{"desert": 1})
		require.True(t, ok)
	}

	// Expire one cluster and refresh the rest.
	clock.Advance(2 * time.Minute)
	for _, x := range []float64{10, 30, 90} {
		idx.Update(at(x, 0), map[string]int{"desert": 1})
	}

	got := idx.Nearby(at(5, 5), 40)

	// (5,5) is expired, (95,5) is out of range.
	require.Len(t, got, 2)
	assert.Equal(t, at(15, 5), got[0].Center)
	assert.Equal(t, at(35, 5), got[1].Center)

	// Radius zero still matches a cluster centered on the query point.
	centered := idx.Nearby(at(15, 5), 0)
	require.Len(t, centered, 1)
	assert.Equal(t, at(15, 5), centered[0].Center)
}

func TestOptimize(t *testing.T) {
	idx := New[string](func(o *Options) {
		o.GridSize = 10
	})

	// Seed two clusters.
	_, ok := idx.Update(at(5, 5), map[string]int{"desert": 9, "plains": 1})
	require.True(t, ok)
	_, ok = idx.Update(at(25, 5), map[string]int{"taiga": 1})
	require.True(t, ok)

	points := func(yield func(geom.Coordinate, string) bool) {
		// Cell (0,0): plains now dominates.
		observations := []struct {
			coord geom.Coordinate
			value string
		}{
			{at(1, 1), "plains"},
			{at(2, 2), "plains"},
			{at(3, 3), "desert"},
			// Cell (4,0) has no cluster and must not gain one.
			{at(45, 5), "jungle"},
		}
		for _, o := range observations {
			if !yield(o.coord, o.value) {
				return
			}
		}
	}

	updated := idx.Optimize(points)
	assert.Equal(t, 1, updated)

	refreshed, ok := idx.Get(at(5, 5))
	require.True(t, ok)
	assert.Equal(t, "plains", refreshed.DominantValue)
	assert.Equal(t, map[string]int{"plains": 2, "desert": 1}, refreshed.Distribution)
	assert.InDelta(t, 2.0/3.0, refreshed.Confidence, 1e-9)

	// The cluster with no matching observations is untouched.
	untouched, ok := idx.Get(at(25, 5))
	require.True(t, ok)
	assert.Equal(t, "taiga", untouched.DominantValue)

	// No cluster appeared for the stray observation.
	_, ok = idx.Get(at(45, 5))
	assert.False(t, ok)
	assert.Equal(t, 2, idx.Len())
}

func TestClearRegion(t *testing.T) {
	idx := New[string](func(o *Options) {
		o.GridSize = 10
	})

	for _, x := range []float64{0, 10, 50} {
		_, ok := idx.Update(at(x, 0), map[string]int{"desert": 1})
		require.True(t, ok)
	}

	// Centers are (5,5), (15,5), (55,5).
	removed := idx.ClearRegion(geom.NewBounds(0, 0, 20, 20))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Len())

	_, ok := idx.Get(at(55, 5))
	assert.True(t, ok)

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
}
