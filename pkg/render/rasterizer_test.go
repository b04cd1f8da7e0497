package render

import (
	"math"
	"testing"

	"github.com/taigrr/stlview/pkg/math3d"
)

// mockMesh implements MeshSource for testing.
type mockMesh struct {
	vertices []struct {
		pos    math3d.Vec3
		normal math3d.Vec3
	}
	faces [][3]int
}

func (m *mockMesh) VertexCount() int  { return len(m.vertices) }
func (m *mockMesh) FaceCount() int    { return len(m.faces) }
func (m *mockMesh) Face(i int) [3]int { return m.faces[i] }
func (m *mockMesh) Vertex(i int) (pos, normal math3d.Vec3) {
	v := m.vertices[i]
	return v.pos, v.normal
}

// quadMesh is a 10x10 quad at z=0 facing +Z, wound counter-clockwise.
func quadMesh() *mockMesh {
	n := math3d.V3(0, 0, 1)
	return &mockMesh{
		vertices: []struct {
			pos    math3d.Vec3
			normal math3d.Vec3
		}{
			{math3d.V3(-5, -5, 0), n},
			{math3d.V3(5, -5, 0), n},
			{math3d.V3(5, 5, 0), n},
			{math3d.V3(-5, 5, 0), n},
		},
		faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

// createTestRasterizer creates a rasterizer for testing.
func createTestRasterizer(width, height int) (*Rasterizer, *Framebuffer) {
	fb := NewFramebuffer(width, height)
	camera := NewCamera()
	camera.SetPosition(math3d.V3(0, 0, 10))
	camera.LookAt(math3d.Zero3())
	camera.SetAspectRatio(float64(width) / float64(height))
	camera.SetFOV(math.Pi / 3)
	rasterizer := NewRasterizer(camera, fb)
	rasterizer.ClearDepth()
	fb.Clear(RGB(0, 0, 0))
	return rasterizer, fb
}

func countLit(fb *Framebuffer) int {
	n := 0
	for _, c := range fb.Pixels {
		if c.R > 0 || c.G > 0 || c.B > 0 {
			n++
		}
	}
	return n
}

func frontLight() Lighting {
	return Lighting{Ambient: 0, Directional: 1, Direction: math3d.V3(0, 0, 1)}
}

func TestBarycentric(t *testing.T) {
	// Test barycentric coordinates at triangle vertices
	tests := []struct {
		name     string
		px, py   float64
		expected math3d.Vec3
	}{
		{"vertex 0", 0, 0, math3d.V3(1, 0, 0)},
		{"vertex 1", 1, 0, math3d.V3(0, 1, 0)},
		{"vertex 2", 0, 1, math3d.V3(0, 0, 1)},
		{"centroid", 1.0 / 3, 1.0 / 3, math3d.V3(1.0/3, 1.0/3, 1.0/3)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Triangle: (0,0), (1,0), (0,1)
			bc := barycentric(0, 0, 1, 0, 0, 1, tc.px, tc.py)
			if !bc.ApproxEqual(tc.expected, 0.001) {
				t.Errorf("barycentric(%v, %v) = %v, want %v", tc.px, tc.py, bc, tc.expected)
			}
		})
	}

	t.Run("outside triangle", func(t *testing.T) {
		bc := barycentric(0, 0, 1, 0, 0, 1, -1, -1)
		if bc.X >= 0 && bc.Y >= 0 && bc.Z >= 0 {
			t.Error("point outside triangle should have negative barycentric coordinate")
		}
	})
}

func TestInterpolateColor3(t *testing.T) {
	c0 := RGB(255, 0, 0) // Red
	c1 := RGB(0, 255, 0) // Green
	c2 := RGB(0, 0, 255) // Blue

	tests := []struct {
		name     string
		bc       math3d.Vec3
		expected Color
	}{
		{"full red", math3d.V3(1, 0, 0), RGB(255, 0, 0)},
		{"full green", math3d.V3(0, 1, 0), RGB(0, 255, 0)},
		{"full blue", math3d.V3(0, 0, 1), RGB(0, 0, 255)},
		{"equal mix", math3d.V3(1.0/3, 1.0/3, 1.0/3), RGB(85, 85, 85)},
		{"half red half green", math3d.V3(0.5, 0.5, 0), RGB(127, 127, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := interpolateColor3(c0, c1, c2, tc.bc)
			// Allow 1 unit tolerance due to rounding
			if abs(int(result.R)-int(tc.expected.R)) > 1 ||
				abs(int(result.G)-int(tc.expected.G)) > 1 ||
				abs(int(result.B)-int(tc.expected.B)) > 1 {
				t.Errorf("interpolateColor3 with bc=%v = %v, want %v", tc.bc, result, tc.expected)
			}
		})
	}
}

func TestLightingIntensity(t *testing.T) {
	l := Lighting{Ambient: 0.5, Directional: 1, Direction: math3d.V3(0, 0, 2)}

	tests := []struct {
		name   string
		normal math3d.Vec3
		want   float64
	}{
		{"facing light", math3d.V3(0, 0, 1), 1.5},
		{"perpendicular", math3d.V3(1, 0, 0), 0.5},
		{"facing away", math3d.V3(0, 0, -1), 0.5},
		{"zero normal", math3d.Zero3(), 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := l.Intensity(tc.normal); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Intensity(%v) = %v, want %v", tc.normal, got, tc.want)
			}
		})
	}
}

func TestMultiplyColorSaturates(t *testing.T) {
	got := MultiplyColor(RGB(200, 100, 0), 2)
	want := RGB(255, 200, 0)
	if got != want {
		t.Errorf("MultiplyColor = %v, want %v", got, want)
	}
}

func TestDrawTriangleGouraud(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)

	// Counter-clockwise seen from the camera at +Z
	tri := Triangle{
		V: [3]Vertex{
			{Position: math3d.V3(-5, -5, 0), Normal: math3d.V3(0, 0, 1), Color: RGB(200, 200, 200)},
			{Position: math3d.V3(5, -5, 0), Normal: math3d.V3(0.5, 0, 0.866), Color: RGB(200, 200, 200)},
			{Position: math3d.V3(0, 5, 0), Normal: math3d.V3(0, 0, 1), Color: RGB(200, 200, 200)},
		},
	}

	r.DrawTriangleGouraud(tri, frontLight())

	if countLit(fb) == 0 {
		t.Error("DrawTriangleGouraud should draw visible pixels")
	}
}

func TestDrawTriangleGouraud_BackfaceCulling(t *testing.T) {
	// Clockwise seen from the camera
	tri := Triangle{
		V: [3]Vertex{
			{Position: math3d.V3(-5, -5, 0), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
			{Position: math3d.V3(0, 5, 0), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
			{Position: math3d.V3(5, -5, 0), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
		},
	}

	t.Run("culling on", func(t *testing.T) {
		r, fb := createTestRasterizer(100, 100)
		r.CullBackfaces = true
		r.DrawTriangleGouraud(tri, frontLight())
		if n := countLit(fb); n > 0 {
			t.Errorf("back-facing triangle should be culled, but got %d pixels", n)
		}
	})

	t.Run("culling off", func(t *testing.T) {
		r, fb := createTestRasterizer(100, 100)
		r.DrawTriangleGouraud(tri, frontLight())
		if countLit(fb) == 0 {
			t.Error("back-facing triangle should be drawn when culling is off")
		}
	})
}

func TestDrawTriangleGouraud_BehindCamera(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)

	tri := Triangle{
		V: [3]Vertex{
			{Position: math3d.V3(-5, -5, 20), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
			{Position: math3d.V3(5, -5, 20), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
			{Position: math3d.V3(0, 5, 20), Normal: math3d.V3(0, 0, 1), Color: RGB(255, 255, 255)},
		},
	}
	r.DrawTriangleGouraud(tri, frontLight())

	if n := countLit(fb); n > 0 {
		t.Errorf("triangle behind the camera drew %d pixels", n)
	}
}

func TestDepthTest(t *testing.T) {
	r, fb := createTestRasterizer(50, 50)
	light := Lighting{Ambient: 1}

	near := Triangle{V: [3]Vertex{
		{Position: math3d.V3(-5, -5, 1), Color: RGB(255, 0, 0)},
		{Position: math3d.V3(5, -5, 1), Color: RGB(255, 0, 0)},
		{Position: math3d.V3(0, 5, 1), Color: RGB(255, 0, 0)},
	}}
	far := Triangle{V: [3]Vertex{
		{Position: math3d.V3(-5, -5, -1), Color: RGB(0, 0, 255)},
		{Position: math3d.V3(5, -5, -1), Color: RGB(0, 0, 255)},
		{Position: math3d.V3(0, 5, -1), Color: RGB(0, 0, 255)},
	}}

	// Near first, then far: the far triangle must not overwrite it
	r.DrawTriangleGouraud(near, light)
	r.DrawTriangleGouraud(far, light)

	if c := fb.GetPixel(25, 25); c.R < 250 || c.B > 5 {
		t.Errorf("center pixel = %v, want the nearer red triangle", c)
	}
}

func TestDrawBuffer(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)
	dev := NewDevice()
	buf := dev.Upload(quadMesh())

	r.DrawBuffer(buf, math3d.Identity(), RGB(255, 100, 50), frontLight())
	if countLit(fb) == 0 {
		t.Error("DrawBuffer should render visible pixels")
	}
}

func TestDrawBuffer_Scaled(t *testing.T) {
	dev := NewDevice()
	buf := dev.Upload(quadMesh())

	r1, fb1 := createTestRasterizer(100, 100)
	r1.DrawBuffer(buf, math3d.Identity(), RGB(255, 255, 255), frontLight())

	r2, fb2 := createTestRasterizer(100, 100)
	r2.DrawBuffer(buf, math3d.ScaleUniform(0.5), RGB(255, 255, 255), frontLight())

	small, big := countLit(fb2), countLit(fb1)
	if small == 0 || small >= big {
		t.Errorf("half-scale quad covered %d pixels, full-scale %d", small, big)
	}
}

func TestDrawBuffer_Released(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)
	dev := NewDevice()
	buf := dev.Upload(quadMesh())
	buf.Release()

	r.DrawBuffer(buf, math3d.Identity(), RGB(255, 255, 255), frontLight())
	r.DrawBufferWireframe(buf, math3d.Identity(), RGB(255, 255, 255))
	if n := countLit(fb); n > 0 {
		t.Errorf("released buffer drew %d pixels", n)
	}
}

func TestDrawBufferWireframe(t *testing.T) {
	rFill, fbFill := createTestRasterizer(100, 100)
	rWire, fbWire := createTestRasterizer(100, 100)
	dev := NewDevice()
	buf := dev.Upload(quadMesh())

	rFill.DrawBuffer(buf, math3d.Identity(), RGB(255, 255, 255), frontLight())
	rWire.DrawBufferWireframe(buf, math3d.Identity(), RGB(255, 255, 255))

	filled, wire := countLit(fbFill), countLit(fbWire)
	if wire == 0 {
		t.Fatal("wireframe drew nothing")
	}
	if wire >= filled {
		t.Errorf("wireframe covered %d pixels, filled %d; edges should cover less", wire, filled)
	}
	// The quad center is interior, not on an edge of either triangle
	if c := fbWire.GetPixel(30, 40); c != RGB(0, 0, 0) {
		t.Errorf("interior pixel lit in wireframe mode: %v", c)
	}
}

func TestDrawGrid(t *testing.T) {
	r, fb := createTestRasterizer(100, 100)
	r.camera.SetPosition(math3d.V3(0, 10, 10))
	r.camera.LookAt(math3d.Zero3())

	r.DrawGrid(10, 4, 0, ColorGrid)
	if countLit(fb) == 0 {
		t.Error("DrawGrid should draw visible lines")
	}

	fb.Clear(RGB(0, 0, 0))
	r.DrawGrid(10, 0, 0, ColorGrid)
	if n := countLit(fb); n > 0 {
		t.Errorf("grid with no divisions drew %d pixels", n)
	}
}

func TestRasterizerResize(t *testing.T) {
	r, fb := createTestRasterizer(10, 10)
	*fb = *NewFramebuffer(20, 30)
	r.Resize()
	if got := len(r.zbuffer); got != 600 {
		t.Errorf("zbuffer len = %d, want 600", got)
	}
	r.ClearDepth()
	if d := r.getDepth(19, 29); d != math.MaxFloat64 {
		t.Errorf("cleared depth = %v, want MaxFloat64", d)
	}
}

func BenchmarkDrawBuffer(b *testing.B) {
	r, _ := createTestRasterizer(200, 200)
	buf := NewDevice().Upload(quadMesh())
	light := frontLight()
	for b.Loop() {
		r.ClearDepth()
		r.DrawBuffer(buf, math3d.Identity(), RGB(255, 255, 255), light)
	}
}
