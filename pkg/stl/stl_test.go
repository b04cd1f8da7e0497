package stl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
)

func cube() *models.Geometry {
	return models.NewBox("cube", math3d.V3(-1, -1, -1), math3d.V3(2, 2, 2))
}

func encodeBinary(t *testing.T, g *models.Geometry) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteBinary(&buf, g); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	return buf.Bytes()
}

// encodeASCII writes g as ASCII STL with one computed normal per facet.
func encodeASCII(t *testing.T, g *models.Geometry) []byte {
	t.Helper()
	var buf bytes.Buffer
	name := g.Name
	if name == "" {
		name = "mesh"
	}

	fmt.Fprintf(&buf, "solid %s\n", name)
	for i := range g.FaceCount() {
		f := g.Face(i)
		v0, v1, v2 := g.Positions[f[0]], g.Positions[f[1]], g.Positions[f[2]]
		n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()

		fmt.Fprintf(&buf, "  facet normal %g %g %g\n    outer loop\n", n.X, n.Y, n.Z)
		for _, v := range [3]math3d.Vec3{v0, v1, v2} {
			fmt.Fprintf(&buf, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(&buf, "    endloop\n  endfacet\n")
	}
	fmt.Fprintf(&buf, "endsolid %s\n", name)
	return buf.Bytes()
}

func TestDecodeBinaryCube(t *testing.T) {
	data := encodeBinary(t, cube())
	if len(data) != 84+12*50 {
		t.Fatalf("encoded size = %d, want %d", len(data), 84+12*50)
	}

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.VertexCount() != 36 {
		t.Errorf("VertexCount() = %d, want 36", g.VertexCount())
	}
	if g.Indexed() {
		t.Error("binary STL should decode without an index buffer")
	}
	if g.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", g.TriangleCount())
	}
	if !g.HasNormals() {
		t.Error("facet normals should be carried over")
	}
	if g.Name != "cube" {
		t.Errorf("Name = %q, want %q", g.Name, "cube")
	}
}

func TestDecodeASCIICube(t *testing.T) {
	data := encodeASCII(t, cube())
	if IsBinary(data) {
		t.Fatal("ASCII data detected as binary")
	}

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", g.TriangleCount())
	}
	box := g.BoundingBox()
	if !box.Min.ApproxEqual(math3d.V3(-1, -1, -1), 1e-9) || !box.Max.ApproxEqual(math3d.V3(1, 1, 1), 1e-9) {
		t.Errorf("BoundingBox() = %+v", box)
	}
}

func TestDecodeASCIIWithBOM(t *testing.T) {
	data := append([]byte("\xef\xbb\xbf"), encodeASCII(t, cube())...)
	if IsBinary(data) {
		t.Fatal("ASCII data with a byte order mark detected as binary")
	}

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", g.TriangleCount())
	}
	if g.Name != "cube" {
		t.Errorf("Name = %q, want %q", g.Name, "cube")
	}
}

func TestBinaryWithSolidHeader(t *testing.T) {
	g := cube()
	g.Name = "solid cube exported by a CAD tool"
	data := encodeBinary(t, g)

	if !IsBinary(data) {
		t.Fatal("length-consistent data must be treated as binary")
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestZeroNormalsAreDropped(t *testing.T) {
	data := encodeBinary(t, cube())
	// Zero the first facet normal
	for i := 84; i < 84+12; i++ {
		data[i] = 0
	}

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if g.Normals != nil {
		t.Error("expected nil normals when a facet normal is missing")
	}
}

func TestMergeVertices(t *testing.T) {
	g, err := Decode(encodeBinary(t, cube()), WithMergeVertices(true))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !g.Indexed() {
		t.Fatal("expected indexed geometry")
	}
	if g.VertexCount() != 8 {
		t.Errorf("VertexCount() = %d, want 8", g.VertexCount())
	}
	if len(g.Indices) != 36 {
		t.Errorf("index count = %d, want 36", len(g.Indices))
	}
	if g.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", g.TriangleCount())
	}
	if g.Normals != nil {
		t.Error("welded geometry should drop facet normals")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := encodeBinary(t, cube())

	countOnly := make([]byte, 84)
	binary.LittleEndian.PutUint32(countOnly[80:], 0)

	nan := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(nan[84+12:], 0x7fc00000) // NaN in the first vertex

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", []byte("garbage"), ErrTruncated},
		{"no triangles", countOnly, ErrEmpty},
		{"truncated body", valid[:len(valid)-60], ErrTruncated},
		{"nan vertex", nan, ErrMalformed},
		{"ascii no facets", []byte("solid empty\nendsolid empty\n"), ErrEmpty},
		{"ascii bad number", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex a b c\n"), ErrMalformed},
		{"ascii short facet", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nvertex 1 0 0\nendloop\nendfacet\nendsolid\n"), ErrMalformed},
		{"ascii unterminated", []byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\n"), ErrTruncated},
		{"ascii junk", []byte("solid x\nhello world\n"), ErrMalformed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if !errors.Is(err, tc.want) {
				t.Errorf("Decode() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestASCIIIsCaseInsensitive(t *testing.T) {
	data := strings.ToUpper(string(encodeASCII(t, cube())))
	// "SOLID" does not match the lowercase prefix check, so force the ASCII path
	g, err := decodeASCII([]byte(data))
	if err != nil {
		t.Fatalf("decodeASCII: %v", err)
	}
	if g.TriangleCount() != 12 {
		t.Errorf("TriangleCount() = %d, want 12", g.TriangleCount())
	}
}
