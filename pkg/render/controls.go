package render

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/taigrr/stlview/pkg/math3d"
)

const (
	minPolar = 0.01
	maxPolar = math.Pi - 0.01
	restEps  = 1e-9
)

// orbitAxis is one spherical coordinate animated toward a goal by a spring.
type orbitAxis struct {
	value float64
	goal  float64
	vel   float64
}

func (a *orbitAxis) settle(v float64) {
	a.value, a.goal, a.vel = v, v, 0
}

func (a *orbitAxis) update(s harmonica.Spring) {
	a.value, a.vel = s.Update(a.value, a.vel, a.goal)
}

func (a *orbitAxis) atRest() bool {
	return math.Abs(a.goal-a.value) < restEps && math.Abs(a.vel) < restEps
}

// OrbitControls orbits, zooms and pans a camera around a target point.
//
// Input sets goals; Update moves the camera toward them with critically
// damped springs, once per frame.
type OrbitControls struct {
	camera *Camera
	target math3d.Vec3

	radius orbitAxis
	theta  orbitAxis // azimuth around +Y, 0 looks down -Z
	phi    orbitAxis // polar angle from +Y

	spring harmonica.Spring

	MinDistance float64 // 0 disables the limit
	MaxDistance float64 // 0 disables the limit
	RotateSpeed float64 // radians per input unit
	ZoomSpeed   float64 // zoom factor exponent per input unit
	PanSpeed    float64 // fraction of the distance per input unit
}

// NewOrbitControls attaches damped orbit controls to camera.
// fps is the rate Update will be called at.
func NewOrbitControls(camera *Camera, fps int) *OrbitControls {
	if fps <= 0 {
		fps = 60
	}
	c := &OrbitControls{
		camera: camera,
		// Frequency 6.0 = responsive, damping 1.0 = critically damped (no overshoot)
		spring:      harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
		RotateSpeed: 0.01,
		ZoomSpeed:   0.1,
		PanSpeed:    0.002,
	}
	c.Sync()
	return c
}

// Target returns the point the controls orbit around.
func (c *OrbitControls) Target() math3d.Vec3 {
	return c.target
}

// SetTarget sets the orbit center and re-reads the camera pose.
func (c *OrbitControls) SetTarget(target math3d.Vec3) {
	c.target = target
	c.Sync()
}

// Sync reads the camera pose into the controls and cancels any motion in
// progress, so the next Update leaves the camera where it is.
func (c *OrbitControls) Sync() {
	offset := c.camera.Position.Sub(c.target)
	r := offset.Len()
	if r == 0 {
		c.radius.settle(0)
		c.theta.settle(0)
		c.phi.settle(math.Pi / 2)
		return
	}
	c.radius.settle(r)
	c.theta.settle(math.Atan2(offset.X, offset.Z))
	c.phi.settle(math.Acos(clamp(offset.Y/r, -1, 1)))
}

// Rotate orbits by the given input deltas (e.g. pointer pixels).
func (c *OrbitControls) Rotate(dx, dy float64) {
	c.theta.goal -= dx * c.RotateSpeed
	c.phi.goal = clamp(c.phi.goal-dy*c.RotateSpeed, minPolar, maxPolar)
}

// Zoom moves toward (delta > 0) or away from (delta < 0) the target.
func (c *OrbitControls) Zoom(delta float64) {
	r := c.radius.goal * math.Pow(1+c.ZoomSpeed, -delta)
	if c.MinDistance > 0 {
		r = math.Max(r, c.MinDistance)
	}
	if c.MaxDistance > 0 {
		r = math.Min(r, c.MaxDistance)
	}
	c.radius.goal = r
}

// Pan shifts the target and camera in the view plane.
func (c *OrbitControls) Pan(dx, dy float64) {
	scale := c.radius.value * c.PanSpeed
	move := c.camera.Right().Scale(-dx * scale).Add(c.camera.ViewUp().Scale(dy * scale))
	c.target = c.target.Add(move)
	c.camera.SetPosition(c.camera.Position.Add(move))
	c.camera.LookAt(c.target)
}

// Update advances the damped motion by one frame and repositions the camera.
// It reports whether the camera moved.
func (c *OrbitControls) Update() bool {
	if c.radius.atRest() && c.theta.atRest() && c.phi.atRest() {
		return false
	}

	c.radius.update(c.spring)
	c.theta.update(c.spring)
	c.phi.update(c.spring)

	for _, a := range []*orbitAxis{&c.radius, &c.theta, &c.phi} {
		if a.atRest() {
			a.settle(a.goal)
		}
	}

	c.apply()
	return true
}

func (c *OrbitControls) apply() {
	r, theta := c.radius.value, c.theta.value
	phi := clamp(c.phi.value, minPolar, maxPolar)
	offset := math3d.V3(
		r*math.Sin(phi)*math.Sin(theta),
		r*math.Cos(phi),
		r*math.Sin(phi)*math.Cos(theta),
	)
	c.camera.SetPosition(c.target.Add(offset))
	c.camera.LookAt(c.target)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
