package viewer

import (
	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
	"github.com/taigrr/stlview/pkg/render"
)

// Object is the mesh currently displayed by a Scene.
type Object struct {
	Name      string
	Color     render.Color
	Wireframe bool
	Scale     float64

	// Offset is the translation that moved the mesh's bounding-box center
	// from its authored position to the origin.
	Offset math3d.Vec3
	// Bounds is the bounding box of the centered, unscaled mesh.
	Bounds    math3d.Box3
	Triangles int

	geometry *models.Geometry
	buffer   *render.MeshBuffer
}

// Transform returns the object-to-world transform. The mesh is already
// centered, so scaling about the origin keeps it centered.
func (o *Object) Transform() math3d.Mat4 {
	return math3d.ScaleUniform(o.Scale)
}

// WorldBounds returns the bounding box of the object in scene coordinates.
func (o *Object) WorldBounds() math3d.Box3 {
	return o.Bounds.Transform(o.Transform())
}

// Geometry returns the centered geometry. Callers must not modify it.
func (o *Object) Geometry() *models.Geometry {
	return o.geometry
}

// Released reports whether the object's buffer has been released.
func (o *Object) Released() bool {
	return o.buffer == nil || o.buffer.Released()
}

func (o *Object) release() {
	if o.buffer != nil {
		o.buffer.Release()
	}
}

func (o *Object) status() Status {
	return Status{
		Loaded:    true,
		Name:      o.Name,
		Triangles: o.Triangles,
		Text:      triangleText(o.Triangles),
	}
}

// exportOptions moves the centered mesh back to its authored position, so
// the exported node scales about the original bounding-box center.
func (o *Object) exportOptions() models.ExportOptions {
	return models.ExportOptions{
		Color:       linearColor(o.Color),
		Metallic:    exportMetallic,
		Roughness:   exportRoughness,
		Translation: o.Offset.Negate(),
		Scale:       o.Scale,
	}
}
