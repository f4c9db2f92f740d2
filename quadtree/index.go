package quadtree

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/quadgo/geom"
)

// Index wraps an immutable Tree behind a single mutable handle. Readers load
// the current snapshot lock-free; writers are serialized and publish a new
// snapshot atomically, so a reader never observes a partially-applied
// insert and a failed write leaves the prior snapshot intact.
type Index[T comparable] struct {
	state   atomic.Pointer[Tree[T]]
	writeMu sync.Mutex
}

// NewIndex creates an index over an empty tree spanning bounds.
func NewIndex[T comparable](bounds geom.Bounds, optFns ...func(o *Options)) *Index[T] {
	idx := &Index[T]{}
	idx.state.Store(New[T](bounds, optFns...))
	return idx
}

// Snapshot returns the current immutable tree. The returned tree stays valid
// after later inserts.
func (idx *Index[T]) Snapshot() *Tree[T] {
	return idx.state.Load()
}

// Insert adds p and publishes the new snapshot. It reports false when p's
// coordinate lies outside the tree bounds, in which case the index is
// unchanged.
func (idx *Index[T]) Insert(p geom.Placement[T]) bool {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	old := idx.state.Load()
	next := old.Insert(p)
	if next == old {
		return false
	}
	idx.state.Store(next)
	return true
}

// Query returns every placement inside bounds from the current snapshot.
func (idx *Index[T]) Query(bounds geom.Bounds) []geom.Placement[T] {
	return idx.Snapshot().Query(bounds)
}

// FindNearest returns the placement closest to c from the current snapshot.
func (idx *Index[T]) FindNearest(c geom.Coordinate, maxDistance float64) (geom.Placement[T], bool) {
	return idx.Snapshot().FindNearest(c, maxDistance)
}

// Len returns the number of placements in the current snapshot.
func (idx *Index[T]) Len() int {
	return idx.Snapshot().Len()
}

// Bounds returns the world rectangle the index spans.
func (idx *Index[T]) Bounds() geom.Bounds {
	return idx.Snapshot().Bounds()
}

// Stats traverses the current snapshot.
func (idx *Index[T]) Stats() Stats {
	return idx.Snapshot().Stats()
}
