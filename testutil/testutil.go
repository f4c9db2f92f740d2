// Package testutil provides seeded generators and brute-force oracles for
// exercising the spatial index and caches in tests.
package testutil

import (
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/quadgo/geom"
	"github.com/hupe1980/quadgo/metadata"
)

// BiomeNames is a pool of realistic biome identifiers for generated
// placements.
var BiomeNames = []string{
	"plains", "desert", "forest", "jungle", "tundra",
	"swamp", "savanna", "badlands", "taiga", "ocean",
}

// baseTime anchors generated PlacedAt values so runs are reproducible.
var baseTime = time.Unix(1700000000, 0).UTC()

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Coordinate returns a uniform random coordinate inside bounds.
func (r *RNG) Coordinate(bounds geom.Bounds) geom.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return geom.Coordinate{
		X: bounds.MinX + r.rand.Float64()*bounds.Width(),
		Z: bounds.MinZ + r.rand.Float64()*bounds.Height(),
	}
}

// Bounds returns a random axis-aligned sub-rectangle of world.
func (r *RNG) Bounds(world geom.Bounds) geom.Bounds {
	a := r.Coordinate(world)
	b := r.Coordinate(world)
	return geom.Bounds{
		MinX: math.Min(a.X, b.X),
		MinZ: math.Min(a.Z, b.Z),
		MaxX: math.Max(a.X, b.X),
		MaxZ: math.Max(a.Z, b.Z),
	}
}

// Biome returns a random biome identifier from BiomeNames.
func (r *RNG) Biome() string {
	return BiomeNames[r.Intn(len(BiomeNames))]
}

// Placements generates n placements with uniform random coordinates inside
// world, random biome IDs, and sequential Seq numbers starting at 1.
func (r *RNG) Placements(n int, world geom.Bounds) []geom.Placement[string] {
	placements := make([]geom.Placement[string], n)
	for i := range placements {
		biome := r.Biome()
		placements[i] = geom.Placement[string]{
			ID:         biome,
			Coordinate: r.Coordinate(world),
			Radius:     1 + r.Float64()*15,
			Priority:   r.Intn(10),
			PlacedAt:   baseTime.Add(time.Duration(i) * time.Second),
			Metadata:   metadata.Document{"biome": metadata.String(biome)},
			Seq:        uint32(i + 1),
		}
	}
	return placements
}

// BruteForceRange returns the placements whose coordinate lies inside
// bounds, in input order. It is the oracle for tree range queries.
func BruteForceRange[T comparable](placements []geom.Placement[T], bounds geom.Bounds) []geom.Placement[T] {
	var out []geom.Placement[T]
	for _, p := range placements {
		if bounds.Contains(p.Coordinate) {
			out = append(out, p)
		}
	}
	return out
}

// BruteForceNearest returns the placement with minimal Euclidean distance to
// c, rejecting candidates past maxDistance (<= 0 or +Inf means unbounded).
// It is the oracle for nearest-neighbor queries.
func BruteForceNearest[T comparable](placements []geom.Placement[T], c geom.Coordinate, maxDistance float64) (geom.Placement[T], bool) {
	bounded := maxDistance > 0 && !math.IsInf(maxDistance, 1)

	var best geom.Placement[T]
	bestDist := math.Inf(1)
	found := false

	for _, p := range placements {
		d := p.Coordinate.Distance(c)
		if bounded && d > maxDistance {
			continue
		}
		if d < bestDist {
			best = p
			bestDist = d
			found = true
		}
	}
	return best, found
}

// Seqs extracts the Seq numbers of the given placements, sorted ascending.
// Comparing sorted Seqs checks set equality without caring about order.
func Seqs[T comparable](placements []geom.Placement[T]) []uint32 {
	seqs := make([]uint32, len(placements))
	for i, p := range placements {
		seqs[i] = p.Seq
	}
	slices.Sort(seqs)
	return seqs
}
