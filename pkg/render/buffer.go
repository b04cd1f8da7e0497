package render

import (
	"sync"
	"unsafe"

	"github.com/taigrr/stlview/pkg/math3d"
)

// MeshSource is the geometry interface the device uploads from.
// It keeps this package independent of the models package.
type MeshSource interface {
	VertexCount() int
	FaceCount() int
	Face(i int) [3]int
	Vertex(i int) (pos, normal math3d.Vec3)
}

// Device owns the render-ready vertex buffers and tracks which are alive.
// A buffer stays alive until Release is called on it.
type Device struct {
	mu    sync.Mutex
	live  map[uint64]int64 // buffer id -> bytes
	bytes int64
	next  uint64
}

// NewDevice creates an empty device.
func NewDevice() *Device {
	return &Device{live: make(map[uint64]int64)}
}

// Upload copies the vertex data of src into a new buffer.
func (d *Device) Upload(src MeshSource) *MeshBuffer {
	n := src.VertexCount()
	b := &MeshBuffer{
		device:    d,
		positions: make([]math3d.Vec3, n),
		normals:   make([]math3d.Vec3, n),
		faces:     make([][3]int32, src.FaceCount()),
		world:     make([]math3d.Vec3, n),
		worldN:    make([]math3d.Vec3, n),
	}
	for i := range n {
		b.positions[i], b.normals[i] = src.Vertex(i)
	}
	for i := range b.faces {
		f := src.Face(i)
		b.faces[i] = [3]int32{int32(f[0]), int32(f[1]), int32(f[2])}
	}
	b.bounds = math3d.BoxFromPoints(b.positions)

	vec := int64(unsafe.Sizeof(math3d.Vec3{}))
	size := 4*int64(n)*vec + int64(len(b.faces))*int64(unsafe.Sizeof([3]int32{}))

	d.mu.Lock()
	d.next++
	b.id = d.next
	d.live[b.id] = size
	d.bytes += size
	d.mu.Unlock()

	return b
}

func (d *Device) release(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size, ok := d.live[id]; ok {
		d.bytes -= size
		delete(d.live, id)
	}
}

// LiveBuffers returns the number of buffers that have not been released.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// LiveBytes returns the memory held by unreleased buffers.
func (d *Device) LiveBytes() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytes
}

// MeshBuffer holds a mesh in render-ready form plus per-frame scratch space.
type MeshBuffer struct {
	id        uint64
	device    *Device
	positions []math3d.Vec3
	normals   []math3d.Vec3
	faces     [][3]int32
	bounds    math3d.Box3

	// Scratch, rewritten by every draw
	world  []math3d.Vec3
	worldN []math3d.Vec3

	released bool
}

// FaceCount returns the number of triangles in the buffer.
func (b *MeshBuffer) FaceCount() int {
	return len(b.faces)
}

// Bounds returns the local-space bounding box of the buffer.
func (b *MeshBuffer) Bounds() math3d.Box3 {
	return b.bounds
}

// Released reports whether Release has been called.
func (b *MeshBuffer) Released() bool {
	return b.released
}

// Release frees the buffer. Drawing a released buffer draws nothing.
// Calling Release more than once is a no-op.
func (b *MeshBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.positions, b.normals, b.faces = nil, nil, nil
	b.world, b.worldN = nil, nil
	b.device.release(b.id)
}

// transform fills the scratch arrays with world-space positions and normals.
func (b *MeshBuffer) transform(m math3d.Mat4) {
	for i, p := range b.positions {
		b.world[i] = m.MulVec3(p)
		b.worldN[i] = m.MulVec3Dir(b.normals[i]).Normalize()
	}
}
