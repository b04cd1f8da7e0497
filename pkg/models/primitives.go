package models

import "github.com/taigrr/stlview/pkg/math3d"

// boxFaces lists the corners of each box face counter-clockwise as seen
// from outside. Corner i has +X when bit 0 is set, +Y for bit 1, +Z for bit 2.
var boxFaces = [6][4]int{
	{1, 3, 7, 5}, // +X
	{0, 4, 6, 2}, // -X
	{2, 6, 7, 3}, // +Y
	{0, 1, 5, 4}, // -Y
	{4, 5, 7, 6}, // +Z
	{0, 2, 3, 1}, // -Z
}

// NewBox builds a non-indexed box with the given size whose minimum corner
// sits at min. It has 12 outward-facing triangles and no normals, the same
// shape an STL export of a cube produces.
func NewBox(name string, min, size math3d.Vec3) *Geometry {
	var corners [8]math3d.Vec3
	for i := range corners {
		c := min
		if i&1 != 0 {
			c.X += size.X
		}
		if i&2 != 0 {
			c.Y += size.Y
		}
		if i&4 != 0 {
			c.Z += size.Z
		}
		corners[i] = c
	}

	g := NewGeometry(name)
	g.Positions = make([]math3d.Vec3, 0, 36)
	for _, q := range boxFaces {
		g.Positions = append(g.Positions,
			corners[q[0]], corners[q[1]], corners[q[2]],
			corners[q[0]], corners[q[2]], corners[q[3]],
		)
	}
	return g
}
