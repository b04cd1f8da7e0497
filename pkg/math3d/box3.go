package math3d

import "math"

// Box3 is an axis-aligned bounding box.
// The zero value is not empty; use EmptyBox3 as the starting point for Expand.
type Box3 struct {
	Min, Max Vec3
}

// EmptyBox3 returns a box that contains nothing. Expanding it by a point
// yields the degenerate box around that point.
func EmptyBox3() Box3 {
	inf := math.Inf(1)
	return Box3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// BoxFromPoints returns the smallest box containing every point.
func BoxFromPoints(points []Vec3) Box3 {
	b := EmptyBox3()
	for _, p := range points {
		b = b.Expand(p)
	}
	return b
}

// IsEmpty reports whether the box contains no points.
func (b Box3) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Expand returns the box grown to include p.
func (b Box3) Expand(p Vec3) Box3 {
	return Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Center returns the center of the box.
func (b Box3) Center() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the extents of the box along each axis.
func (b Box3) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// MaxExtent returns the largest of the three extents.
func (b Box3) MaxExtent() float64 {
	return b.Size().MaxComponent()
}

// Transform returns the box bounding all 8 corners of b after m is applied.
func (b Box3) Transform(m Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox3()
	for i := range 8 {
		corner := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if i&1 != 0 {
			corner.X = b.Max.X
		}
		if i&2 != 0 {
			corner.Y = b.Max.Y
		}
		if i&4 != 0 {
			corner.Z = b.Max.Z
		}
		out = out.Expand(m.MulVec3(corner))
	}
	return out
}

// Translate returns the box moved by d.
func (b Box3) Translate(d Vec3) Box3 {
	if b.IsEmpty() {
		return b
	}
	return Box3{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}
