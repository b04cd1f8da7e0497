// Package viewer is the host-independent core of stlview: the scene that owns
// the displayed mesh, the presenter that installs decoded meshes into it and
// the ingestor that turns user files into presented meshes.
//
// Hosts translate their own events (terminal keys, browser messages) into
// calls on these types and drive the render loop.
package viewer

import (
	"io"
	"math"
	"sync"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
	"github.com/taigrr/stlview/pkg/render"
	"go.uber.org/zap"
)

// Material settings used when exporting the displayed object.
const (
	exportMetallic  = 0.2
	exportRoughness = 0.6
)

// Options configure a Scene.
type Options struct {
	Background     render.Color
	GridColor      render.Color
	ShowGrid       bool
	GridSize       float64
	GridDivisions  int
	GridY          float64
	FOV            float64 // Vertical field of view in radians
	FitOffset      float64 // Camera distance multiplier used by FitCamera
	Ambient        float64
	Directional    float64
	LightDirection math3d.Vec3
	FPS            int // Rate Update is called at
	CullBackfaces  bool
}

// DefaultOptions returns the stock scene setup.
func DefaultOptions() Options {
	return Options{
		Background:     render.RGB(0x07, 0x10, 0x18),
		GridColor:      render.ColorGrid,
		ShowGrid:       true,
		GridSize:       400,
		GridDivisions:  40,
		GridY:          -80,
		FOV:            45 * math.Pi / 180,
		FitOffset:      DefaultFitOffset,
		Ambient:        0.6,
		Directional:    1.0,
		LightDirection: math3d.V3(50, 50, 50),
		FPS:            60,
	}
}

// Status is what the UI shows about the displayed object.
type Status struct {
	Loaded    bool
	Name      string
	Triangles int
	Text      string
}

// NoModelText is the status text shown when nothing is displayed.
const NoModelText = "No model loaded"

func (s Status) String() string {
	return s.Text
}

// StatusFunc receives every status change.
type StatusFunc func(Status)

// CameraPose is a snapshot of where the camera is and what it looks at.
type CameraPose struct {
	Position math3d.Vec3
	Target   math3d.Vec3
	Near     float64
	Far      float64
}

// Scene owns the camera, the lights, the orbit controls and the single
// displayed-object slot. It is safe for concurrent use; a host typically
// renders from one goroutine while input and ingestion run on others.
type Scene struct {
	mu  sync.Mutex
	log *zap.Logger

	opts     Options
	device   *render.Device
	camera   *render.Camera
	controls *render.OrbitControls
	light    render.Lighting
	object   *Object

	rast   *render.Rasterizer
	rastFB *render.Framebuffer
	rastW  int
	rastH  int

	onStatus StatusFunc
}

// NewScene creates an empty scene.
func NewScene(opts Options, log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.FitOffset <= 0 {
		opts.FitOffset = DefaultFitOffset
	}
	if opts.FOV <= 0 {
		opts.FOV = DefaultOptions().FOV
	}

	camera := render.NewCamera()
	camera.SetFOV(opts.FOV)

	return &Scene{
		log:      log,
		opts:     opts,
		device:   render.NewDevice(),
		camera:   camera,
		controls: render.NewOrbitControls(camera, opts.FPS),
		light: render.Lighting{
			Ambient:     opts.Ambient,
			Directional: opts.Directional,
			Direction:   opts.LightDirection,
		},
	}
}

// OnStatus registers fn to receive status changes. It replaces any earlier
// handler and is called without the scene lock held.
func (s *Scene) OnStatus(fn StatusFunc) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

func (s *Scene) publish(fn StatusFunc, st Status) {
	if fn != nil {
		fn(st)
	}
}

// Status returns the current status.
func (s *Scene) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Scene) statusLocked() Status {
	if s.object == nil {
		return Status{Text: NoModelText}
	}
	return s.object.status()
}

// Object returns a copy of the displayed object.
func (s *Scene) Object() (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.object == nil {
		return Object{}, false
	}
	return *s.object, true
}

// CameraPose returns the current camera pose.
func (s *Scene) CameraPose() CameraPose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CameraPose{
		Position: s.camera.Position,
		Target:   s.camera.Target,
		Near:     s.camera.Near,
		Far:      s.camera.Far,
	}
}

// Lighting returns the current light setup.
func (s *Scene) Lighting() render.Lighting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.light
}

// Resources reports the mesh buffers the scene holds on its device.
func (s *Scene) Resources() (buffers int, bytes int64) {
	return s.device.LiveBuffers(), s.device.LiveBytes()
}

// install makes obj the displayed object, releasing the previous one first,
// and frames it with the camera.
func (s *Scene) install(obj *Object) Status {
	s.mu.Lock()
	if old := s.object; old != nil {
		old.release()
		s.log.Debug("released object", zap.String("name", old.Name))
	}
	s.object = obj
	FitCamera(s.camera, s.controls, obj.WorldBounds(), s.opts.FitOffset)
	st := s.statusLocked()
	fn := s.onStatus
	s.mu.Unlock()

	s.log.Debug("installed object",
		zap.String("name", obj.Name),
		zap.Int("triangles", obj.Triangles),
	)
	s.publish(fn, st)
	return st
}

// Reset removes the displayed object and releases its buffer. Resetting an
// empty scene only republishes the "No model loaded" status.
func (s *Scene) Reset() Status {
	s.mu.Lock()
	if s.object != nil {
		s.object.release()
		s.log.Debug("reset", zap.String("name", s.object.Name))
		s.object = nil
	}
	st := s.statusLocked()
	fn := s.onStatus
	s.mu.Unlock()

	s.publish(fn, st)
	return st
}

// SetColor sets the surface color from a hex string. It is a no-op when
// nothing is displayed.
func (s *Scene) SetColor(hex string) error {
	c, err := ParseColor(hex)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.object != nil {
		s.object.Color = c
	}
	return nil
}

// SetWireframe toggles wireframe rendering of the displayed object.
func (s *Scene) SetWireframe(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.object != nil {
		s.object.Wireframe = on
	}
}

// SetScale sets the uniform scale of the displayed object. The object stays
// centered on the origin and the camera is not refitted.
func (s *Scene) SetScale(scale float64) error {
	if err := validateScale(scale); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.object != nil {
		s.object.Scale = scale
	}
	return nil
}

// SetAmbient sets the ambient light intensity.
func (s *Scene) SetAmbient(v float64) error {
	if err := validateIntensity("ambient", v); err != nil {
		return err
	}
	s.mu.Lock()
	s.light.Ambient = v
	s.mu.Unlock()
	return nil
}

// SetDirectional sets the directional light intensity.
func (s *Scene) SetDirectional(v float64) error {
	if err := validateIntensity("directional", v); err != nil {
		return err
	}
	s.mu.Lock()
	s.light.Directional = v
	s.mu.Unlock()
	return nil
}

// Resize updates the camera for a viewport of the given pixel size.
func (s *Scene) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	s.camera.SetAspectRatio(float64(width) / float64(height))
	s.mu.Unlock()
}

// Orbit rotates the camera around its target.
func (s *Scene) Orbit(dx, dy float64) {
	s.mu.Lock()
	s.controls.Rotate(dx, dy)
	s.mu.Unlock()
}

// Zoom moves the camera toward (delta > 0) or away from the target.
func (s *Scene) Zoom(delta float64) {
	s.mu.Lock()
	s.controls.Zoom(delta)
	s.mu.Unlock()
}

// Pan shifts the camera and its target in the view plane.
func (s *Scene) Pan(dx, dy float64) {
	s.mu.Lock()
	s.controls.Pan(dx, dy)
	s.mu.Unlock()
}

// Update advances the damped camera motion by one frame. It reports whether
// the camera moved.
func (s *Scene) Update() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls.Update()
}

// Render draws the scene into fb.
func (s *Scene) Render(fb *render.Framebuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rastFB != fb || s.rastW != fb.Width || s.rastH != fb.Height {
		s.rast = render.NewRasterizer(s.camera, fb)
		s.rastFB, s.rastW, s.rastH = fb, fb.Width, fb.Height
		if fb.Width > 0 && fb.Height > 0 {
			s.camera.SetAspectRatio(float64(fb.Width) / float64(fb.Height))
		}
	}
	s.rast.CullBackfaces = s.opts.CullBackfaces

	s.draw(s.rast, fb)
}

func (s *Scene) draw(r *render.Rasterizer, fb *render.Framebuffer) {
	fb.Clear(s.opts.Background)
	r.ClearDepth()

	if s.opts.ShowGrid {
		r.DrawGrid(s.opts.GridSize, s.opts.GridDivisions, s.opts.GridY, s.opts.GridColor)
	}

	obj := s.object
	if obj == nil {
		return
	}
	if obj.Wireframe {
		r.DrawBufferWireframe(obj.buffer, obj.Transform(), obj.Color)
		return
	}
	r.DrawBuffer(obj.buffer, obj.Transform(), obj.Color, s.light)
}

// Export writes the displayed object as binary glTF.
func (s *Scene) Export(w io.Writer) error {
	s.mu.Lock()
	obj := s.object
	var opts models.ExportOptions
	if obj != nil {
		opts = obj.exportOptions()
	}
	s.mu.Unlock()

	if obj == nil {
		return ErrNoModel
	}
	// The geometry is never written after install, so it can be read unlocked.
	return models.WriteGLB(w, obj.geometry, opts)
}

// ExportFile writes the displayed object to path as binary glTF.
func (s *Scene) ExportFile(path string) error {
	s.mu.Lock()
	obj := s.object
	var opts models.ExportOptions
	if obj != nil {
		opts = obj.exportOptions()
	}
	s.mu.Unlock()

	if obj == nil {
		return ErrNoModel
	}
	return models.SaveGLB(path, obj.geometry, opts)
}
