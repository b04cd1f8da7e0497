package models

import (
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/taigrr/stlview/pkg/math3d"
)

// ExportOptions describes how a geometry is placed and shaded in a glTF scene.
type ExportOptions struct {
	Color       [3]float64  // Base color, linear 0-1
	Metallic    float64     // 0 = dielectric, 1 = metal
	Roughness   float64     // 0 = smooth, 1 = rough
	Translation math3d.Vec3 // Node translation
	Scale       float64     // Uniform node scale; 0 means 1
}

// NewGLTFDocument builds a single-mesh glTF document for g.
// Positions, normals (when present) and indices (when indexed) become
// accessors in one embedded buffer.
func NewGLTFDocument(g *Geometry, opts ExportOptions) (*gltf.Document, error) {
	if g.VertexCount() == 0 {
		return nil, fmt.Errorf("geometry %q has no vertices", g.Name)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	doc := gltf.NewDocument()

	positions := make([][3]float32, len(g.Positions))
	for i, p := range g.Positions {
		positions[i] = [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
	}
	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(doc, positions),
	}

	if g.HasNormals() {
		normals := make([][3]float32, len(g.Normals))
		for i, n := range g.Normals {
			normals[i] = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		}
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, normals)
	}

	prim := &gltf.Primitive{
		Attributes: attrs,
		Material:   gltf.Index(0),
	}
	if g.Indexed() {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, g.Indices))
	}

	doc.Materials = append(doc.Materials, &gltf.Material{
		Name: "surface",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{opts.Color[0], opts.Color[1], opts.Color[2], 1},
			MetallicFactor:  gltf.Float(opts.Metallic),
			RoughnessFactor: gltf.Float(opts.Roughness),
		},
	})

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       g.Name,
		Primitives: []*gltf.Primitive{prim},
	})

	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:        g.Name,
		Mesh:        gltf.Index(0),
		Translation: [3]float64{opts.Translation.X, opts.Translation.Y, opts.Translation.Z},
		Scale:       [3]float64{scale, scale, scale},
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return doc, nil
}

// WriteGLB encodes g as binary glTF to w.
func WriteGLB(w io.Writer, g *Geometry, opts ExportOptions) error {
	doc, err := NewGLTFDocument(g, opts)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode glb: %w", err)
	}
	return nil
}

// SaveGLB writes g as a binary glTF file at path.
func SaveGLB(path string, g *Geometry, opts ExportOptions) error {
	doc, err := NewGLTFDocument(g, opts)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("save glb: %w", err)
	}
	return nil
}
