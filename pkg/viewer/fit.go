package viewer

import (
	"math"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/render"
)

// DefaultFitOffset leaves some margin around a fitted object.
const DefaultFitOffset = 1.4

// FitDistance returns how far from the center of box a camera with the given
// vertical field of view must be to frame the box, times offset.
// A degenerate box is treated as one unit wide.
func FitDistance(box math3d.Box3, fov, offset float64) float64 {
	size := box.MaxExtent()
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = 1
	}
	return size / (2 * math.Tan(fov/2)) * offset
}

// FitCamera places the camera on the (+X, +Y/3, +Z) diagonal from the box
// center so the whole box is in view, and points the camera and the orbit
// controls at the center. Calling it again with the same box gives the same
// pose.
func FitCamera(cam *render.Camera, controls *render.OrbitControls, box math3d.Box3, offset float64) {
	d := FitDistance(box, cam.FOV, offset)
	center := box.Center()

	cam.SetPosition(center.Add(math3d.V3(d, d/3, d)))
	cam.LookAt(center)
	cam.SetClipPlanes(d/100, d*100)
	if controls != nil {
		controls.SetTarget(center)
	}
}
