// Package geom provides the small geometric value types shared by the file
// header and the spatial index.
package geom

import "math"

// Bounds3 is an axis-aligned 3-D extent.
type Bounds3 struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// NewBounds3 returns a bounds spanning the two corner points, normalizing
// min/max per axis.
func NewBounds3(x0, y0, z0, x1, y1, z1 float64) Bounds3 {
	return Bounds3{
		MinX: math.Min(x0, x1), MaxX: math.Max(x0, x1),
		MinY: math.Min(y0, y1), MaxY: math.Max(y0, y1),
		MinZ: math.Min(z0, z1), MaxZ: math.Max(z0, z1),
	}
}

// EmptyBounds3 returns an inverted bounds suitable for accumulating extents
// with Grow.
func EmptyBounds3() Bounds3 {
	return Bounds3{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
}

// Grow extends the bounds to include the point.
func (b *Bounds3) Grow(x, y, z float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MinZ = math.Min(b.MinZ, z)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
	b.MaxZ = math.Max(b.MaxZ, z)
}

// Contains reports whether the point lies inside the bounds, borders
// included.
func (b Bounds3) Contains(x, y, z float64) bool {
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// Valid reports whether every axis has max >= min.
func (b Bounds3) Valid() bool {
	return b.MaxX >= b.MinX && b.MaxY >= b.MinY && b.MaxZ >= b.MinZ
}

// RangeX returns the X extent length.
func (b Bounds3) RangeX() float64 { return b.MaxX - b.MinX }

// RangeY returns the Y extent length.
func (b Bounds3) RangeY() float64 { return b.MaxY - b.MinY }

// RangeZ returns the Z extent length.
func (b Bounds3) RangeZ() float64 { return b.MaxZ - b.MinZ }

// Clip shrinks the bounds to the intersection with other.
func (b *Bounds3) Clip(other Bounds3) {
	b.MinX = math.Max(b.MinX, other.MinX)
	b.MinY = math.Max(b.MinY, other.MinY)
	b.MinZ = math.Max(b.MinZ, other.MinZ)
	b.MaxX = math.Min(b.MaxX, other.MaxX)
	b.MaxY = math.Min(b.MaxY, other.MaxY)
	b.MaxZ = math.Min(b.MaxZ, other.MaxZ)
}

// Equal compares two bounds with an epsilon tolerance per coordinate.
func (b Bounds3) Equal(other Bounds3) bool {
	return eq(b.MinX, other.MinX) && eq(b.MinY, other.MinY) && eq(b.MinZ, other.MinZ) &&
		eq(b.MaxX, other.MaxX) && eq(b.MaxY, other.MaxY) && eq(b.MaxZ, other.MaxZ)
}

func eq(a, b float64) bool {
	const epsilon = 1e-9
	d := a - b

	return d <= epsilon && d >= -epsilon
}
