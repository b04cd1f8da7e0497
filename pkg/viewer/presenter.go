package viewer

import (
	"fmt"
	"strconv"

	"github.com/taigrr/stlview/pkg/models"
	"go.uber.org/zap"
)

// Presenter turns decoded geometry into the scene's displayed object.
type Presenter struct {
	scene *Scene
	log   *zap.Logger
}

// NewPresenter creates a presenter that installs objects into scene.
func NewPresenter(scene *Scene, log *zap.Logger) *Presenter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Presenter{scene: scene, log: log}
}

// Scene returns the scene objects are installed into.
func (p *Presenter) Scene() *Scene {
	return p.scene
}

// Present centers g on the origin, uploads it and installs it as the
// displayed object with the given parameters, replacing any previous one.
// The camera is fitted to the new object.
//
// g is modified in place and must not be used by the caller afterwards.
func (p *Presenter) Present(g *models.Geometry, params Params) (Status, error) {
	if err := params.Validate(); err != nil {
		return Status{}, err
	}
	if g == nil || g.FaceCount() == 0 {
		return Status{}, fmt.Errorf("%w: empty geometry", ErrDecode)
	}
	if err := g.Validate(); err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if !g.HasNormals() {
		g.ComputeVertexNormals()
	}

	box := g.BoundingBox()
	offset := box.Center().Negate()
	g.Translate(offset)

	obj := &Object{
		Name:      g.Name,
		Color:     params.Color,
		Wireframe: params.Wireframe,
		Scale:     params.Scale,
		Offset:    offset,
		Bounds:    box.Translate(offset),
		Triangles: g.TriangleCount(),
		geometry:  g,
		buffer:    p.scene.device.Upload(g),
	}

	p.log.Debug("presenting mesh",
		zap.String("name", obj.Name),
		zap.Int("vertices", g.VertexCount()),
		zap.Bool("indexed", g.Indexed()),
		zap.Float64("extent", box.MaxExtent()),
	)
	return p.scene.install(obj), nil
}

func triangleText(n int) string {
	return "Triangles: " + strconv.Itoa(n)
}
