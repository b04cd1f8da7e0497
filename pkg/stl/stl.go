// Package stl decodes and encodes STL (stereolithography) triangle meshes.
//
// Both the binary and the ASCII flavours are supported. Decode detects the
// flavour from the data itself, the same way most slicers do: a buffer whose
// length matches the binary triangle count is binary even when its header
// starts with "solid".
package stl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
)

const (
	headerSize   = 80
	countSize    = 4
	triangleSize = 50 // normal + 3 vertices (12 float32) + attribute uint16
)

var (
	// ErrEmpty is returned when the data contains no triangles.
	ErrEmpty = errors.New("stl: no triangles")
	// ErrTruncated is returned when binary data ends before the declared triangle count.
	ErrTruncated = errors.New("stl: truncated data")
	// ErrMalformed is returned for syntax errors and non-finite coordinates.
	ErrMalformed = errors.New("stl: malformed data")
)

type options struct {
	mergeVertices bool
}

// Option configures Decode.
type Option func(*options)

// WithMergeVertices welds identical vertex positions into an index buffer.
// Facet normals are dropped so that smooth normals can be derived from the
// shared vertices.
func WithMergeVertices(merge bool) Option {
	return func(o *options) {
		o.mergeVertices = merge
	}
}

// IsBinary reports whether data should be decoded as binary STL.
func IsBinary(data []byte) bool {
	if len(data) >= headerSize+countSize {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if uint64(headerSize+countSize)+uint64(n)*triangleSize == uint64(len(data)) {
			return true
		}
	}
	return !bytes.HasPrefix(bytes.TrimLeft(trimBOM(data), " \t\r\n"), []byte("solid"))
}

var utf8BOM = []byte("\xef\xbb\xbf")

// trimBOM drops a leading UTF-8 byte order mark, which some editors write
// in front of ASCII STL.
func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// Decode parses binary or ASCII STL data into a geometry.
//
// The geometry carries per-vertex copies of the facet normals when every
// facet declares a usable one; otherwise Normals is nil and callers are
// expected to compute them.
func Decode(data []byte, opts ...Option) (*models.Geometry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		g   *models.Geometry
		err error
	)
	if IsBinary(data) {
		g, err = decodeBinary(data)
	} else {
		g, err = decodeASCII(data)
	}
	if err != nil {
		return nil, err
	}
	if g.VertexCount() == 0 {
		return nil, ErrEmpty
	}

	if o.mergeVertices {
		weld(g)
	}
	return g, nil
}

// facetNormals expands one normal per facet into per-vertex normals. It
// returns nil if any facet normal is missing or unusable.
func facetNormals(normals []math3d.Vec3) []math3d.Vec3 {
	out := make([]math3d.Vec3, 0, len(normals)*3)
	for _, n := range normals {
		l := n.Len()
		if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return nil
		}
		n = n.Scale(1 / l)
		out = append(out, n, n, n)
	}
	return out
}

// weld merges identical positions and rewrites g as indexed geometry.
func weld(g *models.Geometry) {
	index := make(map[math3d.Vec3]uint32, len(g.Positions)/2)
	positions := make([]math3d.Vec3, 0, len(g.Positions)/2)
	indices := make([]uint32, len(g.Positions))

	for i, p := range g.Positions {
		idx, ok := index[p]
		if !ok {
			idx = uint32(len(positions))
			index[p] = idx
			positions = append(positions, p)
		}
		indices[i] = idx
	}

	g.Positions = positions
	g.Indices = indices
	g.Normals = nil
}

func finite(v math3d.Vec3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
