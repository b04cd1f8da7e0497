package models

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/taigrr/stlview/pkg/math3d"
)

func TestWriteGLB(t *testing.T) {
	g := NewBox("cube", math3d.Zero3(), math3d.V3(1, 1, 1))
	g.ComputeVertexNormals()

	var buf bytes.Buffer
	err := WriteGLB(&buf, g, ExportOptions{
		Color:       [3]float64{1, 0.5, 0.25},
		Metallic:    0.2,
		Roughness:   0.6,
		Translation: math3d.V3(-0.5, -0.5, -0.5),
		Scale:       2,
	})
	if err != nil {
		t.Fatalf("WriteGLB: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("glTF")) {
		t.Fatal("output is not a binary glTF container")
	}

	var doc gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("expected one mesh with one primitive")
	}
	prim := doc.Meshes[0].Primitives[0]
	pos, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		t.Fatal("missing POSITION attribute")
	}
	if got := doc.Accessors[pos].Count; got != 36 {
		t.Errorf("position count = %d, want 36", got)
	}
	if _, ok := prim.Attributes[gltf.NORMAL]; !ok {
		t.Error("missing NORMAL attribute")
	}
	if prim.Indices != nil {
		t.Error("non-indexed geometry should not export indices")
	}
	if s := doc.Nodes[0].Scale; s != [3]float64{2, 2, 2} {
		t.Errorf("node scale = %v, want 2", s)
	}
}

func TestWriteGLBIndexed(t *testing.T) {
	g := NewGeometry("quad")
	g.Positions = []math3d.Vec3{
		math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(1, 1, 0), math3d.V3(0, 1, 0),
	}
	g.Indices = []uint32{0, 1, 2, 0, 2, 3}

	var buf bytes.Buffer
	if err := WriteGLB(&buf, g, ExportOptions{Color: [3]float64{1, 1, 1}}); err != nil {
		t.Fatalf("WriteGLB: %v", err)
	}

	var doc gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	prim := doc.Meshes[0].Primitives[0]
	if prim.Indices == nil {
		t.Fatal("expected index accessor")
	}
	if got := doc.Accessors[*prim.Indices].Count; got != 6 {
		t.Errorf("index count = %d, want 6", got)
	}
}

func TestExportEmptyGeometry(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGLB(&buf, NewGeometry("empty"), ExportOptions{}); err == nil {
		t.Error("expected error for empty geometry")
	}
}

func TestSaveGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.glb")
	g := NewBox("cube", math3d.Zero3(), math3d.V3(1, 1, 1))

	if err := SaveGLB(path, g, ExportOptions{Color: [3]float64{1, 1, 1}}); err != nil {
		t.Fatalf("SaveGLB: %v", err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(doc.Meshes) != 1 {
		t.Errorf("meshes = %d, want 1", len(doc.Meshes))
	}
}
