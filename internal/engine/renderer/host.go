package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/engine/shader"
	"github.com/Faultbox/midgard-terrain/internal/engine/shader/shaders"
	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/pkg/terrain"
)

// Lighting holds the per-frame terrain shading parameters.
type Lighting struct {
	LightDir mgl32.Vec3
	Ambient  float32
	FogColor mgl32.Vec3
	FogFar   float32
}

// DefaultLighting returns a low afternoon sun with light haze.
func DefaultLighting() Lighting {
	return Lighting{
		LightDir: mgl32.Vec3{-0.4, -1, -0.3}.Normalize(),
		Ambient:  0.35,
		FogColor: mgl32.Vec3{0.55, 0.7, 0.85},
		FogFar:   2000,
	}
}

// TerrainHost implements terrain.Host on top of OpenGL buffers. Mesh content is
// kept on the CPU and uploaded lazily by Draw, so meshes can be created and
// written without a current GL context.
type TerrainHost struct {
	program *shader.Program
	meshes  map[*GLMesh]struct{}
	retired []*GLMesh
	log     *zap.Logger
}

// NewTerrainHost creates an empty host. Call Init once a GL context exists.
func NewTerrainHost() *TerrainHost {
	return &TerrainHost{
		meshes: make(map[*GLMesh]struct{}),
		log:    logger.Named("terrain-host"),
	}
}

// Init compiles the terrain shader.
func (h *TerrainHost) Init() error {
	program, err := shader.NewProgram(shaders.TerrainVertexShader, shaders.TerrainFragmentShader,
		"uViewProj", "uLightDir", "uEye", "uFogColor", "uFogFar", "uAmbient")
	if err != nil {
		return fmt.Errorf("terrain shader: %w", err)
	}
	h.program = program
	return nil
}

// CreateMesh allocates CPU buffers for a mesh. GPU buffers follow on first draw.
func (h *TerrainHost) CreateMesh(vertexCount, indexCount int) (terrain.Mesh, error) {
	if vertexCount <= 0 || indexCount <= 0 {
		return nil, fmt.Errorf("mesh of %d vertices and %d indices", vertexCount, indexCount)
	}
	return &GLMesh{
		data: terrain.MeshData{
			Vertices: make([]terrain.Vertex, vertexCount),
			Indices:  make([]uint32, indexCount),
		},
	}, nil
}

// ReplaceMesh swaps old for replacement. GPU buffers of old are released on
// the next Draw or Close.
func (h *TerrainHost) ReplaceMesh(old, replacement terrain.Mesh) {
	if m, ok := old.(*GLMesh); ok && m != nil {
		if _, live := h.meshes[m]; live {
			delete(h.meshes, m)
			h.retired = append(h.retired, m)
		}
	}
	if m, ok := replacement.(*GLMesh); ok && m != nil {
		h.meshes[m] = struct{}{}
	}
}

// MeshCount returns the number of live meshes and how many of them are visible.
func (h *TerrainHost) MeshCount() (live, visible int) {
	for m := range h.meshes {
		live++
		if m.visible {
			visible++
		}
	}
	return live, visible
}

// Draw uploads pending mesh changes and draws every visible mesh.
func (h *TerrainHost) Draw(viewProj mgl32.Mat4, eye mgl32.Vec3, light Lighting) {
	h.release()

	h.program.Use()
	h.program.SetMat4("uViewProj", viewProj)
	h.program.SetVec3("uLightDir", light.LightDir)
	h.program.SetVec3("uEye", eye)
	h.program.SetVec3("uFogColor", light.FogColor)
	h.program.SetFloat("uFogFar", light.FogFar)
	h.program.SetFloat("uAmbient", light.Ambient)

	for m := range h.meshes {
		if !m.visible {
			continue
		}
		if m.dirty {
			m.upload()
		}
		gl.BindVertexArray(m.vao)
		gl.DrawElements(gl.TRIANGLES, int32(len(m.data.Indices)), gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
}

// Close releases every GPU resource.
func (h *TerrainHost) Close() {
	for m := range h.meshes {
		h.retired = append(h.retired, m)
	}
	clear(h.meshes)
	h.release()
	if h.program != nil {
		h.program.Delete()
	}
}

func (h *TerrainHost) release() {
	for _, m := range h.retired {
		m.free()
	}
	if len(h.retired) > 0 {
		h.log.Debug("released meshes", zap.Int("count", len(h.retired)))
	}
	h.retired = h.retired[:0]
}

// GLMesh is the terrain.Mesh implementation of TerrainHost.
type GLMesh struct {
	data    terrain.MeshData
	locked  bool
	dirty   bool
	visible bool

	vao, vbo, ebo uint32
}

func (m *GLMesh) Data() *terrain.MeshData {
	return &m.data
}

func (m *GLMesh) Lock() *terrain.MeshData {
	if m.locked {
		panic("renderer: mesh locked twice")
	}
	m.locked = true
	return &m.data
}

func (m *GLMesh) Unlock() {
	if !m.locked {
		panic("renderer: unlock of unlocked mesh")
	}
	m.locked = false
	m.dirty = true
}

func (m *GLMesh) SetVisible(visible bool) {
	m.visible = visible
}

func (m *GLMesh) Visible() bool {
	return m.visible
}

// Dirty reports whether the mesh has changes not yet uploaded.
func (m *GLMesh) Dirty() bool {
	return m.dirty
}

func (m *GLMesh) upload() {
	vertexSize := int(unsafe.Sizeof(terrain.Vertex{}))
	vertexBytes := len(m.data.Vertices) * vertexSize
	indexBytes := len(m.data.Indices) * 4

	if m.vao != 0 {
		gl.BindVertexArray(m.vao)
		gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, vertexBytes, unsafe.Pointer(&m.data.Vertices[0]))
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
		gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, indexBytes, unsafe.Pointer(&m.data.Indices[0]))
		m.dirty = false
		return
	}

	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, vertexBytes, unsafe.Pointer(&m.data.Vertices[0]), gl.DYNAMIC_DRAW)

	// Position (location 0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, int32(vertexSize), 0)
	gl.EnableVertexAttribArray(0)

	// Normal (location 1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, int32(vertexSize), 3*4)
	gl.EnableVertexAttribArray(1)

	// Color (location 2)
	gl.VertexAttribPointerWithOffset(2, 4, gl.FLOAT, false, int32(vertexSize), 6*4)
	gl.EnableVertexAttribArray(2)

	// TexCoord (location 3)
	gl.VertexAttribPointerWithOffset(3, 2, gl.FLOAT, false, int32(vertexSize), 10*4)
	gl.EnableVertexAttribArray(3)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, indexBytes, unsafe.Pointer(&m.data.Indices[0]), gl.DYNAMIC_DRAW)

	m.dirty = false
}

func (m *GLMesh) free() {
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
		m.vao, m.vbo, m.ebo = 0, 0, 0
	}
	m.dirty = true
}
