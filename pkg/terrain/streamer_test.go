package terrain

import (
	"errors"
	"image"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// countingSource counts section reads and fails those listed in fail.
type countingSource struct {
	Source
	heights int
	normals int
	fail    map[image.Point]bool
}

var errSourceDown = errors.New("source down")

func (s *countingSource) SectionHeights(nw, size image.Point, lod int) ([]float32, error) {
	s.heights++
	if s.fail[nw] {
		return nil, errSourceDown
	}
	return s.Source.SectionHeights(nw, size, lod)
}

func (s *countingSource) SectionNormals(nw, size image.Point, lod int) ([]mgl32.Vec3, error) {
	s.normals++
	return s.Source.SectionNormals(nw, size, lod)
}

type fixedTracker struct {
	pos mgl32.Vec3
}

func (f *fixedTracker) Position() mgl32.Vec3 {
	return f.pos
}

func newTestStreamer(t *testing.T, cfg Config, height func(x, z int) float32) (*Streamer, *countingSource, *MemoryHost) {
	t.Helper()

	src := &countingSource{Source: newResourceSource(t, cfg.MapSize, Frequencies(cfg.LODs), height)}
	host := NewMemoryHost()
	s, err := NewStreamer(cfg, src, host)
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	return s, src, host
}

func singleLOD(mapSize int) Config {
	return Config{
		MapSize:   image.Pt(mapSize, mapSize),
		ChunkSize: 4,
		LODs:      []LevelOfDetail{{SampleFrequency: 1, LayerCount: 2}},
	}
}

func threeLODs() Config {
	return Config{
		MapSize:   image.Pt(64, 64),
		ChunkSize: 8,
		LODs: []LevelOfDetail{
			{SampleFrequency: 1, LayerCount: 1},
			{SampleFrequency: 2, LayerCount: 1},
			{SampleFrequency: 4, LayerCount: 1},
		},
	}
}

// checkGrid verifies every loaded cell sits where its logical position says.
func checkGrid(t *testing.T, s *Streamer) {
	t.Helper()

	anchor := s.Center().Sub(image.Pt(s.Radius(), s.Radius())).Mul(s.cfg.ChunkSize)
	for ly := range s.Size() {
		for lx := range s.Size() {
			p := image.Pt(lx, ly)
			c := s.Chunk(p)
			if c == nil {
				continue
			}
			if want := anchor.Add(p.Mul(s.cfg.ChunkSize)); c.Origin() != want {
				t.Errorf("cell %v: expected origin %v, got %v", p, want, c.Origin())
			}
			lod := s.LODForRing(s.ring(p))
			if want := s.cfg.ChunkSize / s.cfg.LODs[lod].SampleFrequency; c.Size() != want {
				t.Errorf("cell %v: expected %d quads, got %d", p, want, c.Size())
			}
		}
	}
}

func TestNewStreamer_Geometry(t *testing.T) {
	s, _, _ := newTestStreamer(t, threeLODs(), func(x, z int) float32 { return 0 })

	if s.Radius() != 2 {
		t.Errorf("expected radius 2, got %d", s.Radius())
	}
	if s.Size() != 5 {
		t.Errorf("expected size 5, got %d", s.Size())
	}
	for r, want := range []int{0, 1, 2} {
		if got := s.LODForRing(r); got != want {
			t.Errorf("ring %d: expected LOD %d, got %d", r, want, got)
		}
	}
}

func TestNewStreamer_InvalidConfig(t *testing.T) {
	cfg := threeLODs()
	cfg.ChunkSize = 6

	if _, err := NewStreamer(cfg, &countingSource{}, NewMemoryHost()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewStreamer(threeLODs(), nil, NewMemoryHost()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for missing source, got %v", err)
	}
}

func TestStreamer_Attach(t *testing.T) {
	s, src, host := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 5 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})

	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if src.heights != 9 || src.normals != 9 {
		t.Errorf("expected 9 section reads each, got %d heights and %d normals", src.heights, src.normals)
	}
	if host.Created != 9 || len(host.Live()) != 9 || host.VisibleCount() != 9 {
		t.Errorf("expected 9 visible meshes, got created=%d live=%d visible=%d",
			host.Created, len(host.Live()), host.VisibleCount())
	}
	if s.NorthWest() != (image.Point{}) {
		t.Errorf("expected north-west (0,0), got %v", s.NorthWest())
	}
	checkGrid(t, s)
}

func TestStreamer_ExecuteWithoutMovement(t *testing.T) {
	s, src, _ := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 5 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})

	// The first Execute attaches.
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	reads := src.heights

	// Less than half a chunk from the center on both axes.
	s.SetTarget(mgl32.Vec3{1.9, 10, -1.9})
	for range 3 {
		if err := s.Execute(); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	if src.heights != reads {
		t.Errorf("expected no reads within the same chunk, got %d", src.heights-reads)
	}
	stats := s.Stats()
	if stats.Ticks != 4 || stats.Moves != 0 {
		t.Errorf("expected 4 ticks and no moves, got %+v", stats)
	}
}

func TestStreamer_OneChunkEast(t *testing.T) {
	s, src, host := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 5 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	reads := src.heights
	before := s.Stats()

	s.SetTarget(mgl32.Vec3{5, 0, 1})
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Only the column entering on the east side is resampled.
	if got := src.heights - reads; got != 3 {
		t.Errorf("expected 3 section reads, got %d", got)
	}
	stats := s.Stats()
	if got := stats.Regenerated - before.Regenerated; got != 3 {
		t.Errorf("expected 3 regenerated cells, got %d", got)
	}
	if got := stats.Refreshed - before.Refreshed; got != 6 {
		t.Errorf("expected 6 refreshed cells, got %d", got)
	}
	if host.Created != 9 {
		t.Errorf("expected meshes to be reused, got %d created", host.Created)
	}
	if s.NorthWest() != image.Pt(1, 0) {
		t.Errorf("expected north-west (1,0), got %v", s.NorthWest())
	}
	checkGrid(t, s)
}

func TestStreamer_ToroidalWrap(t *testing.T) {
	s, _, _ := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return float32(x - z) })
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	steps := []struct {
		target mgl32.Vec3
		nw     image.Point
	}{
		{mgl32.Vec3{5, 0, 1}, image.Pt(1, 0)},
		{mgl32.Vec3{9, 0, 1}, image.Pt(2, 0)},
		{mgl32.Vec3{13, 0, 1}, image.Pt(0, 0)},
		{mgl32.Vec3{13, 0, -3}, image.Pt(0, 2)},
		{mgl32.Vec3{-7, 0, 5}, image.Pt(1, 1)}, // jump of (-5, +2)
		{mgl32.Vec3{1, 0, 1}, image.Pt(0, 0)},
	}

	for i, step := range steps {
		s.SetTarget(step.target)
		if err := s.Execute(); err != nil {
			t.Fatalf("step %d: Execute failed: %v", i, err)
		}
		if s.NorthWest() != step.nw {
			t.Errorf("step %d: expected north-west %v, got %v", i, step.nw, s.NorthWest())
		}
		checkGrid(t, s)

		want := step.target.X() - step.target.Z()
		if got := s.Height(step.target); math32.Abs(got-want) > 1e-4 {
			t.Errorf("step %d: expected height %f, got %f", i, want, got)
		}
	}
}

func TestStreamer_FullJumpRegeneratesEverything(t *testing.T) {
	s, _, _ := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 0 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	before := s.Stats().Regenerated

	s.SetTarget(mgl32.Vec3{-15, 0, 17})
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := s.Stats().Regenerated - before; got != 9 {
		t.Errorf("expected 9 regenerated cells, got %d", got)
	}
	checkGrid(t, s)
}

func TestStreamer_LODTransitions(t *testing.T) {
	s, _, host := newTestStreamer(t, threeLODs(), func(x, z int) float32 { return 0 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	checkGrid(t, s)
	before := s.Stats()

	s.SetTarget(mgl32.Vec3{9, 0, 1})
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// 5 wrapped cells plus 8 whose ring changed.
	stats := s.Stats()
	if got := stats.Regenerated - before.Regenerated; got != 13 {
		t.Errorf("expected 13 regenerated cells, got %d", got)
	}
	if got := stats.Refreshed - before.Refreshed; got != 12 {
		t.Errorf("expected 12 refreshed cells, got %d", got)
	}
	if len(host.Live()) != 25 {
		t.Errorf("expected 25 live meshes, got %d", len(host.Live()))
	}
	checkGrid(t, s)
}

func TestStreamer_SeamPatches(t *testing.T) {
	s, _, _ := newTestStreamer(t, threeLODs(), func(x, z int) float32 { return 0 })
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	tests := []struct {
		cell image.Point
		want [4]int
	}{
		{image.Pt(2, 2), [4]int{2, 2, 2, 2}}, // center faces ring 1
		{image.Pt(1, 1), [4]int{2, 1, 1, 2}}, // ring 1 north-west corner
		{image.Pt(2, 1), [4]int{2, 1, 1, 1}}, // ring 1 north side
		{image.Pt(3, 2), [4]int{1, 2, 1, 1}}, // ring 1 east side
		{image.Pt(3, 3), [4]int{1, 2, 2, 1}}, // ring 1 south-east corner
		{image.Pt(0, 0), [4]int{1, 1, 1, 1}}, // outermost ring
		{image.Pt(4, 2), [4]int{1, 1, 1, 1}},
	}

	for _, tt := range tests {
		c := s.Chunk(tt.cell)
		if c == nil {
			t.Fatalf("cell %v not loaded", tt.cell)
		}
		if got := c.Patches(); got != tt.want {
			t.Errorf("cell %v: expected patches %v, got %v", tt.cell, tt.want, got)
		}
	}
}

func TestStreamer_HeightAcrossLODs(t *testing.T) {
	s, _, _ := newTestStreamer(t, threeLODs(), func(x, z int) float32 {
		return 0.5*float32(x) + 0.25*float32(z) + 3
	})
	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// The grid covers [-16, 24) on both axes.
	for z := float32(-15.9); z < 24; z += 1.7 {
		for x := float32(-15.9); x < 24; x += 1.3 {
			want := 0.5*x + 0.25*z + 3
			if got := s.Height(mgl32.Vec3{x, 100, z}); math32.Abs(got-want) > 1e-3 {
				t.Fatalf("Height(%f, %f): expected %f, got %f", x, z, want, got)
			}
		}
	}

	if got := s.Height(mgl32.Vec3{30, 0, 0}); got != 0 {
		t.Errorf("expected 0 outside the grid, got %f", got)
	}
}

func TestStreamer_HidesCellsOutsideMap(t *testing.T) {
	s, _, host := newTestStreamer(t, singleLOD(16), func(x, z int) float32 { return 7 })
	s.SetTarget(mgl32.Vec3{5, 0, 5})
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// Cells spanning [8, 12) lie beyond the map edge.
	if got := s.Stats().Hidden; got != 5 {
		t.Errorf("expected 5 hidden cells, got %d", got)
	}
	if got := host.VisibleCount(); got != 4 {
		t.Errorf("expected 4 visible meshes, got %d", got)
	}
	if got := s.Height(mgl32.Vec3{10, 0, 2}); got != 0 {
		t.Errorf("expected 0 over a hidden cell, got %f", got)
	}
	if got := s.Height(mgl32.Vec3{2, 0, 2}); math32.Abs(got-7) > 1e-5 {
		t.Errorf("expected 7, got %f", got)
	}

	s.SetTarget(mgl32.Vec3{1, 0, 1})
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := s.Stats().Hidden; got != 0 {
		t.Errorf("expected no hidden cells, got %d", got)
	}
	if got := host.VisibleCount(); got != 9 {
		t.Errorf("expected 9 visible meshes, got %d", got)
	}
	checkGrid(t, s)
}

func TestStreamer_ReadFailure(t *testing.T) {
	cfg := singleLOD(64)
	src := &countingSource{
		Source: newResourceSource(t, cfg.MapSize, nil, func(x, z int) float32 { return 1 }),
		fail:   map[image.Point]bool{image.Pt(4, 0): true},
	}
	host := NewMemoryHost()

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewStreamer(cfg, src, host, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	s.SetTarget(mgl32.Vec3{1, 0, 1})

	err = s.Attach()
	if !errors.Is(err, errSourceDown) {
		t.Fatalf("expected errSourceDown, got %v", err)
	}

	// The failing cell is hidden; the rest of the grid is still built.
	if got := host.VisibleCount(); got != 8 {
		t.Errorf("expected 8 visible meshes, got %d", got)
	}
	if s.Chunk(image.Pt(2, 1)) != nil {
		t.Error("expected failed cell to be unloaded")
	}
	stats := s.Stats()
	if stats.Failed != 1 || stats.Hidden != 1 {
		t.Errorf("expected 1 failed and hidden cell, got %+v", stats)
	}
	if logs.FilterMessage("terrain chunk unavailable").Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}

	// Once the source recovers the cell is retried on the next move.
	delete(src.fail, image.Pt(4, 0))
	s.SetTarget(mgl32.Vec3{1, 0, 5})
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := host.VisibleCount(); got != 9 {
		t.Errorf("expected 9 visible meshes, got %d", got)
	}
}

func TestStreamer_Track(t *testing.T) {
	s, _, _ := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 0 })
	tracker := &fixedTracker{pos: mgl32.Vec3{-5, 0, 9}}
	s.Track(tracker)
	s.SetTarget(mgl32.Vec3{100, 0, 100})

	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if s.Center() != image.Pt(-1, 2) {
		t.Errorf("expected center (-1,2), got %v", s.Center())
	}

	tracker.pos = mgl32.Vec3{-7, 0, 9}
	if err := s.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if s.Center() != image.Pt(-2, 2) {
		t.Errorf("expected center (-2,2), got %v", s.Center())
	}
}

func TestStreamer_MovementRoundsToNearestChunk(t *testing.T) {
	tests := []struct {
		name   string
		offset mgl32.Vec2 // In chunks
		center image.Point
		moves  int
	}{
		{"0.6 east", mgl32.Vec2{0.6, 0}, image.Pt(1, 0), 1},
		{"0.4 west", mgl32.Vec2{-0.4, 0}, image.Pt(0, 0), 0},
		{"0.4 east", mgl32.Vec2{0.4, 0}, image.Pt(0, 0), 0},
		{"0.6 west", mgl32.Vec2{-0.6, 0}, image.Pt(-1, 0), 1},
		{"0.6 east 0.4 north", mgl32.Vec2{0.6, -0.4}, image.Pt(1, 0), 1},
		{"1.6 north", mgl32.Vec2{0, -1.6}, image.Pt(0, -2), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 0 })
			if err := s.Attach(); err != nil {
				t.Fatalf("Attach failed: %v", err)
			}

			cs := float32(s.cfg.ChunkSize)
			s.SetTarget(mgl32.Vec3{tt.offset.X() * cs, 0, tt.offset.Y() * cs})
			if err := s.Execute(); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if s.Center() != tt.center {
				t.Errorf("expected center %v, got %v", tt.center, s.Center())
			}
			if got := s.Stats().Moves; got != tt.moves {
				t.Errorf("expected %d moves, got %d", tt.moves, got)
			}
			checkGrid(t, s)
		})
	}
}

func TestStreamer_StitchFailureHidesCell(t *testing.T) {
	cfg := Config{
		MapSize:   image.Pt(64, 64),
		ChunkSize: 8,
		LODs:      []LevelOfDetail{{SampleFrequency: 1, LayerCount: 1}, {SampleFrequency: 2, LayerCount: 1}},
	}
	src := &countingSource{Source: newResourceSource(t, cfg.MapSize, Frequencies(cfg.LODs), func(x, z int) float32 { return 1 })}
	host := NewMemoryHost()

	core, logs := observer.New(zap.WarnLevel)
	s, err := NewStreamer(cfg, src, host, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	// A coarse ring three times coarser leaves the center edges unpatchable.
	s.cfg.LODs = []LevelOfDetail{{SampleFrequency: 1, LayerCount: 1}, {SampleFrequency: 3, LayerCount: 1}}

	if err := s.Attach(); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	if s.Chunk(image.Pt(1, 1)) != nil {
		t.Error("expected the center cell to be unloaded")
	}
	if got := host.VisibleCount(); got != 8 {
		t.Errorf("expected 8 visible meshes, got %d", got)
	}
	stats := s.Stats()
	if stats.Failed != 1 || stats.Hidden != 1 || stats.Regenerated != 8 {
		t.Errorf("expected 1 failed hidden cell and 8 regenerated, got %+v", stats)
	}
	if logs.FilterMessage("terrain chunk could not be stitched").Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.Len())
	}
}

func TestStreamer_Detach(t *testing.T) {
	s, _, host := newTestStreamer(t, singleLOD(64), func(x, z int) float32 { return 0 })
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	s.Detach()
	if len(host.Live()) != 0 {
		t.Errorf("expected no live meshes, got %d", len(host.Live()))
	}
	if s.Attached() {
		t.Error("expected streamer to be detached")
	}
	if got := s.Height(mgl32.Vec3{}); got != 0 {
		t.Errorf("expected 0 when detached, got %f", got)
	}
}
