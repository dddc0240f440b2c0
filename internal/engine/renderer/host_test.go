package renderer

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-terrain/pkg/terrain"
)

var _ terrain.Host = (*TerrainHost)(nil)

func TestTerrainHost_CreateMesh(t *testing.T) {
	h := NewTerrainHost()

	m, err := h.CreateMesh(16, 24)
	if err != nil {
		t.Fatalf("CreateMesh failed: %v", err)
	}
	if got := len(m.Data().Vertices); got != 16 {
		t.Errorf("expected 16 vertices, got %d", got)
	}
	if got := len(m.Data().Indices); got != 24 {
		t.Errorf("expected 24 indices, got %d", got)
	}
	if live, _ := h.MeshCount(); live != 0 {
		t.Errorf("created meshes are not live until replaced in, got %d", live)
	}

	if _, err := h.CreateMesh(0, 6); err == nil {
		t.Error("expected error for empty mesh")
	}
}

func TestTerrainHost_ReplaceMesh(t *testing.T) {
	h := NewTerrainHost()

	a, _ := h.CreateMesh(4, 6)
	b, _ := h.CreateMesh(4, 6)

	h.ReplaceMesh(nil, a)
	a.SetVisible(true)
	if live, visible := h.MeshCount(); live != 1 || visible != 1 {
		t.Errorf("expected 1 live visible mesh, got %d/%d", live, visible)
	}

	h.ReplaceMesh(a, b)
	if live, visible := h.MeshCount(); live != 1 || visible != 0 {
		t.Errorf("expected 1 live hidden mesh, got %d/%d", live, visible)
	}
	if len(h.retired) != 1 || h.retired[0] != a.(*GLMesh) {
		t.Errorf("expected old mesh retired, got %v", h.retired)
	}

	h.ReplaceMesh(b, nil)
	if live, _ := h.MeshCount(); live != 0 {
		t.Errorf("expected no live meshes, got %d", live)
	}

	h.Close()
	if len(h.retired) != 0 {
		t.Errorf("expected retired meshes released, got %d", len(h.retired))
	}
}

func TestGLMesh_LockMarksDirty(t *testing.T) {
	h := NewTerrainHost()
	m, _ := h.CreateMesh(4, 6)
	gm := m.(*GLMesh)

	if gm.Dirty() {
		t.Error("new mesh should not be dirty")
	}
	data := m.Lock()
	data.Vertices[0].Position = mgl32.Vec3{1, 2, 3}
	m.Unlock()
	if !gm.Dirty() {
		t.Error("expected mesh dirty after unlock")
	}
	if m.Data().Vertices[0].Position != (mgl32.Vec3{1, 2, 3}) {
		t.Error("expected written vertex to be readable")
	}
}

func TestGLMesh_DoubleLockPanics(t *testing.T) {
	m, _ := NewTerrainHost().CreateMesh(4, 6)
	m.Lock()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double lock")
		}
	}()
	m.Lock()
}

type flatSource struct{}

func (flatSource) SectionHeights(nw, size image.Point, lod int) ([]float32, error) {
	return make([]float32, (size.X+1)*(size.Y+1)), nil
}

func (flatSource) SectionNormals(nw, size image.Point, lod int) ([]mgl32.Vec3, error) {
	out := make([]mgl32.Vec3, (size.X+1)*(size.Y+1))
	for i := range out {
		out[i] = mgl32.Vec3{0, 1, 0}
	}
	return out, nil
}

func TestTerrainHost_WithStreamer(t *testing.T) {
	h := NewTerrainHost()
	cfg := terrain.Config{
		MapSize:   image.Pt(64, 64),
		ChunkSize: 8,
		LODs: []terrain.LevelOfDetail{
			{SampleFrequency: 1, LayerCount: 1},
			{SampleFrequency: 2, LayerCount: 1},
		},
	}

	s, err := terrain.NewStreamer(cfg, flatSource{}, h)
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	n := s.Size() * s.Size()
	if live, visible := h.MeshCount(); live != n || visible != n {
		t.Errorf("expected %d live visible meshes, got %d/%d", n, live, visible)
	}
	for m := range h.meshes {
		if !m.Dirty() {
			t.Fatal("expected streamed meshes to await upload")
		}
	}

	s.Detach()
	if live, _ := h.MeshCount(); live != 0 {
		t.Errorf("expected detach to remove every mesh, got %d", live)
	}
}
