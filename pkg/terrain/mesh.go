package terrain

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is a single terrain mesh vertex.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec4
	TexCoord mgl32.Vec2
}

// MeshData is the CPU-side content of a mesh. Buffer lengths are fixed at creation.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
}

// Mesh is a renderable buffer pair owned by a Host.
type Mesh interface {
	// Data returns the current content for reading.
	Data() *MeshData
	// Lock returns the content for writing. Every Lock must be paired with Unlock,
	// after which the host may upload the changes.
	Lock() *MeshData
	Unlock()

	SetVisible(visible bool)
	Visible() bool
}

// Host creates meshes and swaps them into the rendered scene.
type Host interface {
	CreateMesh(vertexCount, indexCount int) (Mesh, error)
	// ReplaceMesh swaps old for replacement in the scene. Either may be nil.
	ReplaceMesh(old, replacement Mesh)
}

// MemoryHost is a Host keeping meshes in memory only.
type MemoryHost struct {
	Created  int
	Replaced int

	live map[*MemoryMesh]struct{}
}

// NewMemoryHost creates an empty in-memory host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{live: make(map[*MemoryMesh]struct{})}
}

// CreateMesh allocates a mesh with zeroed buffers.
func (h *MemoryHost) CreateMesh(vertexCount, indexCount int) (Mesh, error) {
	m := &MemoryMesh{
		data: MeshData{
			Vertices: make([]Vertex, vertexCount),
			Indices:  make([]uint32, indexCount),
		},
	}
	h.Created++
	return m, nil
}

// ReplaceMesh registers replacement as live and releases old.
func (h *MemoryHost) ReplaceMesh(old, replacement Mesh) {
	if m, ok := old.(*MemoryMesh); ok {
		delete(h.live, m)
	}
	if m, ok := replacement.(*MemoryMesh); ok {
		h.live[m] = struct{}{}
	}
	h.Replaced++
}

// Live returns the meshes currently in the scene.
func (h *MemoryHost) Live() []*MemoryMesh {
	out := make([]*MemoryMesh, 0, len(h.live))
	for m := range h.live {
		out = append(out, m)
	}
	return out
}

// VisibleCount returns the number of live visible meshes.
func (h *MemoryHost) VisibleCount() int {
	n := 0
	for m := range h.live {
		if m.visible {
			n++
		}
	}
	return n
}

// MemoryMesh is the Mesh implementation of MemoryHost.
type MemoryMesh struct {
	data    MeshData
	locked  bool
	visible bool

	Writes int // Completed Lock/Unlock cycles
}

func (m *MemoryMesh) Data() *MeshData {
	return &m.data
}

func (m *MemoryMesh) Lock() *MeshData {
	if m.locked {
		panic("terrain: mesh locked twice")
	}
	m.locked = true
	return &m.data
}

func (m *MemoryMesh) Unlock() {
	if !m.locked {
		panic("terrain: unlock of unlocked mesh")
	}
	m.locked = false
	m.Writes++
}

func (m *MemoryMesh) SetVisible(visible bool) {
	m.visible = visible
}

func (m *MemoryMesh) Visible() bool {
	return m.visible
}
