package render

import (
	"math"
	"testing"

	"github.com/taigrr/stlview/pkg/math3d"
)

func TestCameraWorldToScreen(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 10))
	cam.LookAt(math3d.Zero3())

	tests := []struct {
		name    string
		p       math3d.Vec3
		visible bool
	}{
		{"target", math3d.Zero3(), true},
		{"behind camera", math3d.V3(0, 0, 20), false},
		{"far outside frustum", math3d.V3(1000, 0, 0), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y, _, visible := cam.WorldToScreen(tc.p, 100, 100)
			if visible != tc.visible {
				t.Fatalf("visible = %v, want %v", visible, tc.visible)
			}
			if tc.name == "target" && (math.Abs(x-50) > 1e-9 || math.Abs(y-50) > 1e-9) {
				t.Errorf("target projected to (%v, %v), want screen center", x, y)
			}
		})
	}
}

func TestCameraScreenYFlipped(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 10))
	cam.LookAt(math3d.Zero3())

	_, y, _, ok := cam.WorldToScreen(math3d.V3(0, 1, 0), 100, 100)
	if !ok || y >= 50 {
		t.Errorf("point above target at screen y=%v, want above center", y)
	}
}

func TestCameraMatrixCacheInvalidation(t *testing.T) {
	cam := NewCamera()
	before := cam.ViewProjectionMatrix()

	cam.SetPosition(math3d.V3(5, 5, 5))
	if cam.ViewProjectionMatrix() == before {
		t.Error("view-projection not recomputed after SetPosition")
	}

	before = cam.ViewProjectionMatrix()
	cam.SetAspectRatio(2)
	if cam.ViewProjectionMatrix() == before {
		t.Error("view-projection not recomputed after SetAspectRatio")
	}
}

func TestCameraSetAspectRatioIgnoresInvalid(t *testing.T) {
	cam := NewCamera()
	for _, a := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		cam.SetAspectRatio(a)
	}
	if cam.AspectRatio != 1 {
		t.Errorf("AspectRatio = %v, want 1", cam.AspectRatio)
	}
}

func TestCameraBasis(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 10))
	cam.LookAt(math3d.Zero3())

	if f := cam.Forward(); !f.ApproxEqual(math3d.V3(0, 0, -1), 1e-9) {
		t.Errorf("Forward = %v", f)
	}
	if r := cam.Right(); !r.ApproxEqual(math3d.V3(1, 0, 0), 1e-9) {
		t.Errorf("Right = %v", r)
	}
	if u := cam.ViewUp(); !u.ApproxEqual(math3d.V3(0, 1, 0), 1e-9) {
		t.Errorf("ViewUp = %v", u)
	}
}
