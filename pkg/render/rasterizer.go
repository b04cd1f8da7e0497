package render

import (
	"math"

	"github.com/taigrr/stlview/pkg/math3d"
)

// Lighting is an ambient term plus one directional light, both white.
type Lighting struct {
	Ambient     float64     // Ambient intensity
	Directional float64     // Directional light intensity
	Direction   math3d.Vec3 // Direction from the scene toward the light
}

// Intensity returns the light reaching a surface with the given unit normal.
func (l Lighting) Intensity(normal math3d.Vec3) float64 {
	diffuse := math.Max(0, normal.Dot(l.Direction.Normalize()))
	return l.Ambient + l.Directional*diffuse
}

// Shade applies the light reaching a surface to a base color.
func (l Lighting) Shade(base Color, normal math3d.Vec3) Color {
	return MultiplyColor(base, l.Intensity(normal))
}

// Vertex represents a vertex with all attributes needed for rasterization.
type Vertex struct {
	Position math3d.Vec3 // World position
	Normal   math3d.Vec3 // Normal vector (for lighting)
	Color    Color       // Vertex color
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// Rasterizer handles software triangle rasterization.
type Rasterizer struct {
	camera  *Camera
	fb      *Framebuffer
	zbuffer []float64 // Depth buffer (1D array, row-major)

	// CullBackfaces skips triangles wound clockwise on screen.
	// STL files are often inconsistently wound, so it is off by default.
	CullBackfaces bool
}

// NewRasterizer creates a new rasterizer.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera: camera,
		fb:     fb,
	}
	r.Resize()
	return r
}

// Resize resizes the rasterizer's buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// getDepth returns the depth at (x, y).
func (r *Rasterizer) getDepth(x, y int) float64 {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.Width()+x]
}

// setDepth sets the depth at (x, y).
func (r *Rasterizer) setDepth(x, y int, z float64) {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return
	}
	r.zbuffer[y*r.Width()+x] = z
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y  float64 // Screen coordinates
	Z     float64 // Depth (for Z-buffer)
	Color Color
}

// project transforms a world position to screen space.
// ok is false when the point is at or behind the camera plane.
func (r *Rasterizer) project(viewProj math3d.Mat4, p math3d.Vec3) (sv screenVertex, ok bool) {
	clip := viewProj.MulVec4(math3d.V4FromV3(p, 1))
	if clip.W <= 0 {
		return sv, false
	}
	ndc := clip.PerspectiveDivide()
	sv.X = (ndc.X + 1) * 0.5 * float64(r.Width())
	sv.Y = (1 - ndc.Y) * 0.5 * float64(r.Height()) // Y flipped
	sv.Z = ndc.Z
	return sv, true
}

// DrawTriangleGouraud rasterizes a triangle with Gouraud shading (per-vertex lighting).
// Lighting is calculated at each vertex and interpolated across the triangle.
func (r *Rasterizer) DrawTriangleGouraud(tri Triangle, light Lighting) {
	var sv [3]screenVertex
	viewProj := r.camera.ViewProjectionMatrix()

	for i := range 3 {
		v, ok := r.project(viewProj, tri.V[i].Position)
		if !ok {
			// Crossing the camera plane; dropping is cheaper than clipping
			return
		}
		v.Color = light.Shade(tri.V[i].Color, tri.V[i].Normal)
		sv[i] = v
	}

	r.fillTriangle(sv)
}

func (r *Rasterizer) fillTriangle(sv [3]screenVertex) {
	// Signed screen-space area; Y is flipped, so counter-clockwise
	// (front-facing) triangles come out negative.
	cross := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if cross == 0 {
		return // Degenerate
	}
	if r.CullBackfaces && cross > 0 {
		return
	}

	// Find bounding box
	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(r.Width()-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(r.Height()-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5

			bc := barycentric(
				sv[0].X, sv[0].Y,
				sv[1].X, sv[1].Y,
				sv[2].X, sv[2].Y,
				px, py,
			)

			// Check if inside triangle
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}

			z := bc.X*sv[0].Z + bc.Y*sv[1].Z + bc.Z*sv[2].Z
			if z >= r.getDepth(x, y) {
				continue
			}

			r.setDepth(x, y, z)
			r.fb.SetPixel(x, y, interpolateColor3(sv[0].Color, sv[1].Color, sv[2].Color, bc))
		}
	}
}

// DrawBuffer renders a mesh buffer with Gouraud shading.
func (r *Rasterizer) DrawBuffer(buf *MeshBuffer, transform math3d.Mat4, color Color, light Lighting) {
	if buf == nil || buf.Released() {
		return
	}
	buf.transform(transform)

	for _, f := range buf.faces {
		tri := Triangle{
			V: [3]Vertex{
				{Position: buf.world[f[0]], Normal: buf.worldN[f[0]], Color: color},
				{Position: buf.world[f[1]], Normal: buf.worldN[f[1]], Color: color},
				{Position: buf.world[f[2]], Normal: buf.worldN[f[2]], Color: color},
			},
		}
		r.DrawTriangleGouraud(tri, light)
	}
}

// DrawBufferWireframe renders the edges of a mesh buffer.
func (r *Rasterizer) DrawBufferWireframe(buf *MeshBuffer, transform math3d.Mat4, color Color) {
	if buf == nil || buf.Released() {
		return
	}
	buf.transform(transform)

	for _, f := range buf.faces {
		v0, v1, v2 := buf.world[f[0]], buf.world[f[1]], buf.world[f[2]]
		r.DrawLine3D(v0, v1, color)
		r.DrawLine3D(v1, v2, color)
		r.DrawLine3D(v2, v0, color)
	}
}

// DrawLine3D draws a 3D line (projected to screen). Lines with an endpoint
// behind the camera are skipped.
func (r *Rasterizer) DrawLine3D(a, b math3d.Vec3, color Color) {
	viewProj := r.camera.ViewProjectionMatrix()

	sa, okA := r.project(viewProj, a)
	sb, okB := r.project(viewProj, b)
	if !okA || !okB {
		return
	}

	r.fb.DrawLine(int(sa.X), int(sa.Y), int(sb.X), int(sb.Y), color)
}

// DrawGrid draws a square grid of the given size on the XZ plane at height y.
func (r *Rasterizer) DrawGrid(size float64, divisions int, y float64, color Color) {
	if divisions <= 0 || size <= 0 {
		return
	}
	half := size / 2
	step := size / float64(divisions)
	for i := 0; i <= divisions; i++ {
		d := -half + float64(i)*step
		r.DrawLine3D(math3d.V3(d, y, -half), math3d.V3(d, y, half), color)
		r.DrawLine3D(math3d.V3(-half, y, d), math3d.V3(half, y, d), color)
	}
}

// barycentric calculates barycentric coordinates for point (px, py) in triangle.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

// interpolateColor3 interpolates between 3 colors using barycentric coords.
func interpolateColor3(c0, c1, c2 Color, bc math3d.Vec3) Color {
	return RGB(
		uint8(float64(c0.R)*bc.X+float64(c1.R)*bc.Y+float64(c2.R)*bc.Z),
		uint8(float64(c0.G)*bc.X+float64(c1.G)*bc.Y+float64(c2.G)*bc.Z),
		uint8(float64(c0.B)*bc.X+float64(c1.B)*bc.Y+float64(c2.B)*bc.Z),
	)
}

// MultiplyColor scales a color by an intensity, saturating at 255.
func MultiplyColor(c Color, intensity float64) Color {
	scale := func(v uint8) uint8 {
		return uint8(clamp(float64(v)*intensity, 0, 255))
	}
	return Color{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
