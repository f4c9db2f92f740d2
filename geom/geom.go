// Package geom provides the 2D world-space primitives shared by the quadtree,
// caches and cluster index: coordinates, axis-aligned bounds and placements.
package geom

import (
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/quadgo/metadata"
)

// Coordinate is a point in 2D world space.
type Coordinate struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance to other.
func (c Coordinate) Distance(other Coordinate) float64 {
	return math.Hypot(c.X-other.X, c.Z-other.Z)
}

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%g, %g)", c.X, c.Z)
}

// Bounds is an axis-aligned rectangle in world space, inclusive on all edges.
// Invariant: MinX <= MaxX and MinZ <= MaxZ. Malformed bounds are a caller
// precondition violation and are not detected here.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinZ float64 `json:"minZ"`
	MaxX float64 `json:"maxX"`
	MaxZ float64 `json:"maxZ"`
}

// NewBounds returns the bounds spanning the two corner points.
func NewBounds(minX, minZ, maxX, maxZ float64) Bounds {
	return Bounds{MinX: minX, MinZ: minZ, MaxX: maxX, MaxZ: maxZ}
}

// Contains reports whether c lies inside b (edges inclusive).
func (b Bounds) Contains(c Coordinate) bool {
	return c.X >= b.MinX && c.X <= b.MaxX && c.Z >= b.MinZ && c.Z <= b.MaxZ
}

// Intersects reports whether b and other share any point (edges inclusive).
func (b Bounds) Intersects(other Bounds) bool {
	return b.MinX <= other.MaxX && b.MaxX >= other.MinX &&
		b.MinZ <= other.MaxZ && b.MaxZ >= other.MinZ
}

// Center returns the midpoint of b.
func (b Bounds) Center() Coordinate {
	return Coordinate{X: (b.MinX + b.MaxX) / 2, Z: (b.MinZ + b.MaxZ) / 2}
}

// Width returns the extent of b along the X axis.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the extent of b along the Z axis.
func (b Bounds) Height() float64 { return b.MaxZ - b.MinZ }

// Quadrants partitions b into four equal quadrants at the midpoint, in the
// order NW, NE, SW, SE. North is the high-Z half, east the high-X half.
func (b Bounds) Quadrants() [4]Bounds {
	c := b.Center()
	nw := Bounds{MinX: b.MinX, MinZ: c.Z, MaxX: c.X, MaxZ: b.MaxZ}
	ne := Bounds{MinX: c.X, MinZ: c.Z, MaxX: b.MaxX, MaxZ: b.MaxZ}
	sw := Bounds{MinX: b.MinX, MinZ: b.MinZ, MaxX: c.X, MaxZ: c.Z}
	se := Bounds{MinX: c.X, MinZ: b.MinZ, MaxX: b.MaxX, MaxZ: c.Z}
	return [4]Bounds{nw, ne, sw, se}
}

// Square returns the bounds of the axis-aligned square of side 2*radius
// centered on c.
func Square(c Coordinate, radius float64) Bounds {
	return Bounds{
		MinX: c.X - radius,
		MinZ: c.Z - radius,
		MaxX: c.X + radius,
		MaxZ: c.Z + radius,
	}
}

// Placement is a stored regional entity at a point. ID is the opaque biome
// identifier; the type parameter lets callers use whatever identifier type
// their domain defines (string name, numeric registry id, ...).
//
// Placements are immutable once created. Seq is assigned by the owning index
// on insert and is unique per placement within one index; it keys the
// metadata inverted index.
type Placement[T comparable] struct {
	ID         T
	Coordinate Coordinate
	Radius     float64
	Priority   int
	PlacedAt   time.Time
	Metadata   metadata.Document
	Seq        uint32
}

// QueryResult is one row of a materialized range-query answer.
type QueryResult[T comparable] struct {
	ID         T          `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	Distance   float64    `json:"distance"`
	Confidence float64    `json:"confidence"`
}
