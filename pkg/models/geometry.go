// Package models provides the triangle mesh representation used by stlview.
package models

import (
	"fmt"
	"math"

	"github.com/taigrr/stlview/pkg/math3d"
)

// Geometry is a triangle soup: vertex positions, an optional index buffer and
// optional per-vertex normals.
//
// Without an index buffer every three consecutive positions form a triangle.
type Geometry struct {
	Name      string
	Positions []math3d.Vec3
	Indices   []uint32      // nil for non-indexed geometry
	Normals   []math3d.Vec3 // nil, or one per position
}

// NewGeometry creates an empty geometry.
func NewGeometry(name string) *Geometry {
	return &Geometry{Name: name}
}

// VertexCount returns the number of vertex positions.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// Indexed reports whether the geometry carries an index buffer.
func (g *Geometry) Indexed() bool {
	return g.Indices != nil
}

// HasNormals reports whether per-vertex normals are present.
func (g *Geometry) HasNormals() bool {
	return len(g.Normals) > 0 && len(g.Normals) == len(g.Positions)
}

// TriangleCount returns the triangle count shown to the user:
// index-count/3 for indexed geometry, round(vertex-count/3) otherwise.
func (g *Geometry) TriangleCount() int {
	if g.Indexed() {
		return len(g.Indices) / 3
	}
	return int(math.Round(float64(len(g.Positions)) / 3))
}

// FaceCount returns the number of complete triangles that can be drawn.
func (g *Geometry) FaceCount() int {
	if g.Indexed() {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

// Face returns the vertex indices of triangle i.
func (g *Geometry) Face(i int) [3]int {
	if g.Indexed() {
		return [3]int{
			int(g.Indices[3*i]),
			int(g.Indices[3*i+1]),
			int(g.Indices[3*i+2]),
		}
	}
	return [3]int{3 * i, 3*i + 1, 3*i + 2}
}

// Vertex returns the position and normal of vertex i.
// The normal is zero when the geometry has none.
func (g *Geometry) Vertex(i int) (pos, normal math3d.Vec3) {
	pos = g.Positions[i]
	if g.HasNormals() {
		normal = g.Normals[i]
	}
	return pos, normal
}

// Validate checks that indices are in range and normals match positions.
func (g *Geometry) Validate() error {
	n := len(g.Positions)
	for i, idx := range g.Indices {
		if int(idx) >= n {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	if g.Normals != nil && len(g.Normals) != n {
		return fmt.Errorf("%d normals for %d vertices", len(g.Normals), n)
	}
	return nil
}

// BoundingBox computes the axis-aligned bounding box of all positions.
func (g *Geometry) BoundingBox() math3d.Box3 {
	return math3d.BoxFromPoints(g.Positions)
}

// Translate moves every position by d.
func (g *Geometry) Translate(d math3d.Vec3) {
	if d.IsZero() {
		return
	}
	for i := range g.Positions {
		g.Positions[i] = g.Positions[i].Add(d)
	}
}

// ComputeVertexNormals replaces the normals with ones derived from the faces.
//
// Shared vertices of indexed geometry get the area-weighted average of the
// adjacent face normals (smooth shading). Non-indexed vertices belong to a
// single face and get that face's normal (flat shading).
func (g *Geometry) ComputeVertexNormals() {
	normals := make([]math3d.Vec3, len(g.Positions))

	for i := range g.FaceCount() {
		f := g.Face(i)
		v0 := g.Positions[f[0]]
		v1 := g.Positions[f[1]]
		v2 := g.Positions[f[2]]

		// Unnormalized: the length weights by triangle area
		n := v1.Sub(v0).Cross(v2.Sub(v0))

		normals[f[0]] = normals[f[0]].Add(n)
		normals[f[1]] = normals[f[1]].Add(n)
		normals[f[2]] = normals[f[2]].Add(n)
	}

	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	g.Normals = normals
}

