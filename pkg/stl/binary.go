package stl

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
)

func decodeBinary(data []byte) (*models.Geometry, error) {
	if len(data) < headerSize+countSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncated, len(data))
	}

	name := strings.TrimRight(string(data[:headerSize]), " \x00")
	count := int(binary.LittleEndian.Uint32(data[headerSize:]))
	body := data[headerSize+countSize:]

	if count == 0 {
		return nil, ErrEmpty
	}
	if len(body)/triangleSize < count {
		return nil, fmt.Errorf("%w: header declares %d triangles, data holds %d",
			ErrTruncated, count, len(body)/triangleSize)
	}

	g := models.NewGeometry(name)
	g.Positions = make([]math3d.Vec3, 0, count*3)
	normals := make([]math3d.Vec3, 0, count)

	for i := range count {
		tri := body[i*triangleSize : (i+1)*triangleSize]
		normals = append(normals, readVec3(tri[0:]))
		for v := range 3 {
			p := readVec3(tri[12+12*v:])
			if !finite(p) {
				return nil, fmt.Errorf("%w: triangle %d has a non-finite vertex", ErrMalformed, i)
			}
			g.Positions = append(g.Positions, p)
		}
	}

	g.Normals = facetNormals(normals)
	return g, nil
}

func readVec3(b []byte) math3d.Vec3 {
	return math3d.V3(
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	)
}

// WriteBinary encodes g as binary STL. Facet normals are computed from the
// triangle winding.
func WriteBinary(w io.Writer, g *models.Geometry) error {
	header := make([]byte, headerSize+countSize)
	copy(header, g.Name)
	faces := g.FaceCount()
	binary.LittleEndian.PutUint32(header[headerSize:], uint32(faces))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	tri := make([]byte, triangleSize)
	for i := range faces {
		f := g.Face(i)
		v0, v1, v2 := g.Positions[f[0]], g.Positions[f[1]], g.Positions[f[2]]
		n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()

		putVec3(tri[0:], n)
		putVec3(tri[12:], v0)
		putVec3(tri[24:], v1)
		putVec3(tri[36:], v2)
		// attribute byte count stays zero

		if _, err := w.Write(tri); err != nil {
			return fmt.Errorf("write triangle %d: %w", i, err)
		}
	}
	return nil
}

func putVec3(b []byte, v math3d.Vec3) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}
