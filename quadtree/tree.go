// Package quadtree provides an immutable, structurally-shared 2D spatial
// tree for placement storage and range/nearest-neighbor queries, plus an
// atomic-snapshot handle for concurrent use.
package quadtree

import (
	"math"

	"github.com/hupe1980/quadgo/geom"
)

// Options contains configuration options for the tree.
type Options struct {
	// MaxDepth bounds how deep the tree may split. Leaves at MaxDepth grow
	// without splitting.
	MaxDepth int

	// MaxEntriesPerNode is the leaf capacity that triggers a split.
	MaxEntriesPerNode int
}

// DefaultOptions contains the default configuration options for the tree.
var DefaultOptions = Options{
	MaxDepth:          8,
	MaxEntriesPerNode: 16,
}

// Tree is an immutable quadtree over a fixed world rectangle. Every mutation
// returns a new Tree whose root shares all untouched subtrees with the prior
// version, so an insert costs O(depth) allocations and old snapshots stay
// valid forever.
type Tree[T comparable] struct {
	root *node[T]
	opts Options
	size int
}

// node is either a leaf (children == nil) holding entries, or an internal
// node with exactly four children quartering its bounds (NW, NE, SW, SE).
// Every entry in a node satisfies bounds.Contains(entry.Coordinate).
type node[T comparable] struct {
	bounds   geom.Bounds
	entries  []geom.Placement[T]
	children *[4]*node[T]
}

// New creates a tree spanning bounds with a single empty leaf root.
func New[T comparable](bounds geom.Bounds, optFns ...func(o *Options)) *Tree[T] {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions.MaxDepth
	}
	if opts.MaxEntriesPerNode <= 0 {
		opts.MaxEntriesPerNode = DefaultOptions.MaxEntriesPerNode
	}

	return &Tree[T]{
		root: &node[T]{bounds: bounds},
		opts: opts,
	}
}

// Bounds returns the world rectangle the tree spans.
func (t *Tree[T]) Bounds() geom.Bounds { return t.root.bounds }

// Len returns the number of stored placements.
func (t *Tree[T]) Len() int { return t.size }

// Insert returns a new tree containing p. If p's coordinate lies outside the
// tree bounds the receiver is returned unchanged. The receiver is never
// modified.
func (t *Tree[T]) Insert(p geom.Placement[T]) *Tree[T] {
	newRoot := t.root.insert(p, 0, t.opts)
	if newRoot == t.root {
		return t
	}
	return &Tree[T]{root: newRoot, opts: t.opts, size: t.size + 1}
}

// insert returns the node with p added, copying only the spine from this
// node down to the affected leaf. Nodes that do not contain p's coordinate
// are returned by reference, unchanged.
func (n *node[T]) insert(p geom.Placement[T], depth int, opts Options) *node[T] {
	if !n.bounds.Contains(p.Coordinate) {
		return n
	}

	if n.children == nil {
		entries := make([]geom.Placement[T], len(n.entries), len(n.entries)+1)
		copy(entries, n.entries)
		entries = append(entries, p)

		if len(entries) > opts.MaxEntriesPerNode && depth < opts.MaxDepth {
			return split(n.bounds, entries, depth, opts)
		}
		return &node[T]{bounds: n.bounds, entries: entries}
	}

	q := quadrantIndex(n.bounds.Center(), p.Coordinate)
	newChild := n.children[q].insert(p, depth+1, opts)
	if newChild == n.children[q] {
		return n
	}

	children := *n.children
	children[q] = newChild
	return &node[T]{bounds: n.bounds, children: &children}
}

// split partitions bounds into four quadrants and re-inserts every entry
// into the child that contains it, splitting recursively if a quadrant
// overflows in turn.
func split[T comparable](bounds geom.Bounds, entries []geom.Placement[T], depth int, opts Options) *node[T] {
	quads := bounds.Quadrants()
	var children [4]*node[T]
	for i := range children {
		children[i] = &node[T]{bounds: quads[i]}
	}

	mid := bounds.Center()
	for _, e := range entries {
		q := quadrantIndex(mid, e.Coordinate)
		children[q] = children[q].insert(e, depth+1, opts)
	}

	return &node[T]{bounds: bounds, children: &children}
}

// quadrantIndex routes a coordinate to exactly one quadrant: east takes
// x >= mid.X, north takes z >= mid.Z. Midpoint coordinates are therefore
// deterministic even though sibling bounds share edges.
func quadrantIndex(mid, c geom.Coordinate) int {
	north := c.Z >= mid.Z
	east := c.X >= mid.X

	switch {
	case north && !east:
		return 0 // NW
	case north && east:
		return 1 // NE
	case !north && !east:
		return 2 // SW
	default:
		return 3 // SE
	}
}

// Query returns every stored placement whose coordinate lies inside bounds.
// Output order is unspecified.
func (t *Tree[T]) Query(bounds geom.Bounds) []geom.Placement[T] {
	return t.root.query(bounds, nil)
}

func (n *node[T]) query(bounds geom.Bounds, out []geom.Placement[T]) []geom.Placement[T] {
	if !n.bounds.Intersects(bounds) {
		return out
	}

	if n.children == nil {
		for _, e := range n.entries {
			if bounds.Contains(e.Coordinate) {
				out = append(out, e)
			}
		}
		return out
	}

	for _, child := range n.children {
		out = child.query(bounds, out)
	}
	return out
}

// FindNearest returns the placement closest to c by Euclidean distance.
// Candidates are gathered from the square of side 2*maxDistance centered on
// c and rejected past maxDistance. A maxDistance <= 0 or +Inf searches the
// whole tree. Ties resolve to the first candidate encountered; callers must
// not rely on tie order across structural changes.
func (t *Tree[T]) FindNearest(c geom.Coordinate, maxDistance float64) (geom.Placement[T], bool) {
	bounded := maxDistance > 0 && !math.IsInf(maxDistance, 1)

	search := t.root.bounds
	if bounded {
		search = geom.Square(c, maxDistance)
	}

	var best geom.Placement[T]
	bestDist := math.Inf(1)
	found := false

	for _, p := range t.Query(search) {
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
