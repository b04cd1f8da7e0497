package render

import (
	"testing"

	"github.com/taigrr/stlview/pkg/math3d"
)

func TestDeviceUpload(t *testing.T) {
	dev := NewDevice()
	buf := dev.Upload(quadMesh())

	if buf.FaceCount() != 2 {
		t.Errorf("FaceCount = %d, want 2", buf.FaceCount())
	}
	want := math3d.Box3{Min: math3d.V3(-5, -5, 0), Max: math3d.V3(5, 5, 0)}
	if buf.Bounds() != want {
		t.Errorf("Bounds = %v, want %v", buf.Bounds(), want)
	}
	if dev.LiveBuffers() != 1 || dev.LiveBytes() <= 0 {
		t.Errorf("live = %d buffers / %d bytes after upload", dev.LiveBuffers(), dev.LiveBytes())
	}
}

func TestMeshBufferRelease(t *testing.T) {
	dev := NewDevice()
	a := dev.Upload(quadMesh())
	b := dev.Upload(quadMesh())
	if dev.LiveBuffers() != 2 {
		t.Fatalf("LiveBuffers = %d, want 2", dev.LiveBuffers())
	}

	a.Release()
	a.Release() // no-op
	if !a.Released() {
		t.Error("Released() = false after Release")
	}
	if dev.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers = %d, want 1", dev.LiveBuffers())
	}

	b.Release()
	if dev.LiveBuffers() != 0 || dev.LiveBytes() != 0 {
		t.Errorf("leaked %d buffers / %d bytes", dev.LiveBuffers(), dev.LiveBytes())
	}
}

func TestMeshBufferTransform(t *testing.T) {
	buf := NewDevice().Upload(quadMesh())
	buf.transform(math3d.Translate(math3d.V3(1, 0, 0)).Mul(math3d.ScaleUniform(2)))

	if got := buf.world[0]; got != math3d.V3(-9, -10, 0) {
		t.Errorf("world[0] = %v, want (-9, -10, 0)", got)
	}
	if got := buf.worldN[0]; !got.ApproxEqual(math3d.V3(0, 0, 1), 1e-12) {
		t.Errorf("worldN[0] = %v, want unit +Z", got)
	}
}
