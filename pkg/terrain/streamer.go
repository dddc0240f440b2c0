package terrain

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Tracker reports the position the terrain follows.
type Tracker interface {
	Position() mgl32.Vec3
}

// Stats are cumulative streaming counters.
type Stats struct {
	Ticks       int // Execute calls
	Moves       int // Ticks where the target changed chunk
	Regenerated int // Cells resampled from the source
	Refreshed   int // Cells only re-stitched
	Failed      int // Cells that could not be read or stitched
	Hidden      int // Cells currently hidden
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithLogger sets the logger used for streaming diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(s *Streamer) {
		s.log = log
	}
}

// cell is one slot of the toroidal grid.
type cell struct {
	chunk  Chunk
	lod    int
	loaded bool
	hidden bool
}

// Streamer keeps a square grid of chunks centered on a target. Grid cells live
// in a fixed toroidal array: when the target crosses a chunk boundary the
// north-west storage index rotates and only cells that wrapped around or
// changed LOD are resampled.
//
// Ring r of the grid (Chebyshev distance r from the center cell) uses the LOD
// given by BuildLayerMap. A Streamer is not safe for concurrent use.
type Streamer struct {
	cfg    Config
	source Source
	host   Host
	log    *zap.Logger

	layers []int
	radius int
	size   int
	cells  []cell

	northWest image.Point // Storage index of the logical north-west cell
	center    image.Point // Chunk coordinate of the center cell
	attached  bool

	tracker Tracker
	target  mgl32.Vec3

	stats Stats
}

// NewStreamer validates cfg and allocates the grid. No mesh is created until
// Attach or the first Execute.
func NewStreamer(cfg Config, source Source, host Host, opts ...Option) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil || host == nil {
		return nil, fmt.Errorf("%w: source and host are required", ErrConfiguration)
	}
	if cfg.Colors.isZero() {
		cfg.Colors = DefaultColorPolicy()
	}

	layers := BuildLayerMap(cfg.LODs)
	radius := len(layers) - 1
	size := 2*radius + 1

	s := &Streamer{
		cfg:    cfg,
		source: source,
		host:   host,
		log:    zap.NewNop(),
		layers: layers,
		radius: radius,
		size:   size,
		cells:  make([]cell, size*size),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Debug("terrain streamer created",
		zap.Int("radius", radius),
		zap.Int("gridSize", size),
		zap.Int("chunkSize", cfg.ChunkSize),
		zap.Ints("layers", layers),
	)

	return s, nil
}

// Track makes the streamer follow t. A nil tracker falls back to SetTarget.
func (s *Streamer) Track(t Tracker) {
	s.tracker = t
}

// SetTarget sets a fixed target position, used while no tracker is set.
func (s *Streamer) SetTarget(pos mgl32.Vec3) {
	s.target = pos
}

// Radius returns the number of rings around the center cell.
func (s *Streamer) Radius() int {
	return s.radius
}

// Size returns the number of cells along a grid edge.
func (s *Streamer) Size() int {
	return s.size
}

// NorthWest returns the storage index of the logical north-west cell.
func (s *Streamer) NorthWest() image.Point {
	return s.northWest
}

// Center returns the chunk coordinate of the center cell.
func (s *Streamer) Center() image.Point {
	return s.center
}

// LODForRing returns the LOD used by ring r.
func (s *Streamer) LODForRing(r int) int {
	return s.layers[r]
}

// Stats returns the streaming counters.
func (s *Streamer) Stats() Stats {
	return s.stats
}

// Attached reports whether the grid has been populated.
func (s *Streamer) Attached() bool {
	return s.attached
}

// Chunk returns the chunk at logical grid position p, or nil when the cell is
// not loaded.
func (s *Streamer) Chunk(p image.Point) *Chunk {
	if p.X < 0 || p.Y < 0 || p.X >= s.size || p.Y >= s.size {
		return nil
	}
	c := &s.cells[s.storageIndex(p)]
	if !c.loaded {
		return nil
	}
	return &c.chunk
}

// Attach populates the whole grid around the current target.
func (s *Streamer) Attach() error {
	s.center = s.chunkCoord(s.targetPosition())
	s.northWest = image.Point{}
	for i := range s.cells {
		s.cells[i].loaded = false
	}
	s.attached = true

	s.log.Info("terrain attached",
		zap.Int("centerX", s.center.X),
		zap.Int("centerZ", s.center.Y),
		zap.Int("cells", len(s.cells)),
	)

	return s.stream(image.Point{})
}

// Execute advances the grid to the current target. It does nothing unless the
// target crossed a chunk boundary since the last call. Sample read failures
// leave the affected cells hidden and are returned joined once the whole grid
// has been processed.
func (s *Streamer) Execute() error {
	s.stats.Ticks++
	if !s.attached {
		return s.Attach()
	}

	movement := s.chunkCoord(s.targetPosition()).Sub(s.center)
	if movement == (image.Point{}) {
		return nil
	}

	s.stats.Moves++
	s.center = s.center.Add(movement)
	s.log.Debug("terrain moved",
		zap.Int("dx", movement.X),
		zap.Int("dz", movement.Y),
		zap.Int("centerX", s.center.X),
		zap.Int("centerZ", s.center.Y),
	)

	return s.stream(movement)
}

// Detach releases every mesh back to the host.
func (s *Streamer) Detach() {
	for i := range s.cells {
		c := &s.cells[i]
		if c.chunk.mesh != nil {
			s.host.ReplaceMesh(c.chunk.mesh, nil)
		}
		*c = cell{}
	}
	s.attached = false
	s.stats.Hidden = 0
}

// Height returns the terrain height under pos, or 0 outside the loaded grid.
func (s *Streamer) Height(pos mgl32.Vec3) float32 {
	if !s.attached {
		return 0
	}

	cs := float32(s.cfg.ChunkSize)
	anchor := s.anchor()
	gx := int(math32.Floor((pos.X() - float32(anchor.X)) / cs))
	gz := int(math32.Floor((pos.Z() - float32(anchor.Y)) / cs))
	if gx < 0 || gz < 0 || gx >= s.size || gz >= s.size {
		return 0
	}

	c := &s.cells[s.storageIndex(image.Pt(gx, gz))]
	if !c.loaded {
		return 0
	}

	nw := c.chunk.Origin()
	return c.chunk.Height(mgl32.Vec2{pos.X() - float32(nw.X), pos.Z() - float32(nw.Y)})
}

// stream reconciles every cell with a grid shifted by movement chunks. The
// storage cell now at logical position L held logical position L+movement.
func (s *Streamer) stream(movement image.Point) error {
	northWest := wrap(s.northWest.Add(movement), s.size)
	anchor := s.anchor()

	var errs []error
	for ly := range s.size {
		for lx := range s.size {
			logical := image.Pt(lx, ly)
			previous := logical.Add(movement)
			wrapped := !previous.In(image.Rect(0, 0, s.size, s.size))

			c := &s.cells[s.index(wrap(northWest.Add(logical), s.size))]
			nw := anchor.Add(logical.Mul(s.cfg.ChunkSize))
			lod := s.layers[s.ring(logical)]

			if !s.inMap(nw) {
				s.hide(c)
				continue
			}

			resample := wrapped || c.lod != lod || !c.loaded
			if resample {
				if err := s.regenerate(c, nw, lod); err != nil {
					s.fail(c, nw, lod, "terrain chunk unavailable", err)
					errs = append(errs, err)
					continue
				}
			}
			if err := c.chunk.SetPatches(s.patches(logical)); err != nil {
				s.fail(c, nw, lod, "terrain chunk could not be stitched", err)
				errs = append(errs, err)
				continue
			}

			s.show(c)
			if resample {
				s.stats.Regenerated++
			} else {
				s.stats.Refreshed++
			}
		}
	}

	s.northWest = northWest
	return errors.Join(errs...)
}

// regenerate resamples c at lod, reusing its mesh when the size matches.
func (s *Streamer) regenerate(c *cell, nw image.Point, lod int) error {
	freq := s.cfg.LODs[lod].SampleFrequency
	n := s.cfg.ChunkSize / freq

	if c.chunk.mesh == nil || c.chunk.size != n {
		old := c.chunk.mesh
		if err := c.chunk.init(s.host, n, float32(freq), s.cfg.Colors); err != nil {
			c.loaded = false
			return err
		}
		s.host.ReplaceMesh(old, c.chunk.mesh)
	}
	c.lod = lod
	c.loaded = false

	local := nw.Div(freq)
	heights, err := s.source.SectionHeights(local, image.Pt(n, n), lod)
	if err != nil {
		return err
	}
	normals, err := s.source.SectionNormals(local, image.Pt(n, n), lod)
	if err != nil {
		return err
	}
	if err := c.chunk.SetVertices(nw, heights, normals); err != nil {
		return err
	}

	c.loaded = true
	return nil
}

// patches returns the edge patch lengths of the cell at logical position p.
// Only the outermost cells of a ring facing a coarser ring are patched.
func (s *Streamer) patches(p image.Point) [4]int {
	patches := [4]int{1, 1, 1, 1}

	rel := p.Sub(image.Pt(s.radius, s.radius))
	r := s.ring(p)
	if r >= s.radius {
		return patches
	}
	lod, next := s.layers[r], s.layers[r+1]
	if lod == next {
		return patches
	}

	ratio := s.cfg.LODs[next].SampleFrequency / s.cfg.LODs[lod].SampleFrequency
	if rel.Y == -r {
		patches[North] = ratio
	}
	if rel.X == r {
		patches[East] = ratio
	}
	if rel.Y == r {
		patches[South] = ratio
	}
	if rel.X == -r {
		patches[West] = ratio
	}
	return patches
}

// fail hides a cell that could not be built.
func (s *Streamer) fail(c *cell, nw image.Point, lod int, msg string, err error) {
	s.stats.Failed++
	s.hide(c)
	s.log.Warn(msg,
		zap.Int("x", nw.X),
		zap.Int("z", nw.Y),
		zap.Int("lod", lod),
		zap.Error(err),
	)
}

func (s *Streamer) hide(c *cell) {
	if c.chunk.mesh != nil {
		c.chunk.mesh.SetVisible(false)
	}
	c.loaded = false
	if !c.hidden {
		c.hidden = true
		s.stats.Hidden++
	}
}

func (s *Streamer) show(c *cell) {
	c.chunk.mesh.SetVisible(true)
	if c.hidden {
		c.hidden = false
		s.stats.Hidden--
	}
}

func (s *Streamer) targetPosition() mgl32.Vec3 {
	if s.tracker != nil {
		return s.tracker.Position()
	}
	return s.target
}

// chunkCoord quantizes pos to the nearest chunk unit, halves away from zero.
func (s *Streamer) chunkCoord(pos mgl32.Vec3) image.Point {
	cs := float32(s.cfg.ChunkSize)
	return image.Pt(int(mgl32.Round(pos.X()/cs, 0)), int(mgl32.Round(pos.Z()/cs, 0)))
}

// anchor returns the world position of the logical north-west cell.
func (s *Streamer) anchor() image.Point {
	return s.center.Sub(image.Pt(s.radius, s.radius)).Mul(s.cfg.ChunkSize)
}

// inMap reports whether a chunk at world position nw lies inside the map.
func (s *Streamer) inMap(nw image.Point) bool {
	half := s.cfg.MapSize.Div(2)
	bounds := image.Rectangle{Min: half.Mul(-1), Max: half}
	chunk := image.Rectangle{Min: nw, Max: nw.Add(image.Pt(s.cfg.ChunkSize, s.cfg.ChunkSize))}
	return chunk.In(bounds)
}

// ring returns the Chebyshev distance of logical position p to the center cell.
func (s *Streamer) ring(p image.Point) int {
	return max(abs(p.X-s.radius), abs(p.Y-s.radius))
}

func (s *Streamer) storageIndex(logical image.Point) int {
	return s.index(wrap(s.northWest.Add(logical), s.size))
}

func (s *Streamer) index(storage image.Point) int {
	return storage.Y*s.size + storage.X
}

func wrap(p image.Point, size int) image.Point {
	return image.Pt(((p.X%size)+size)%size, ((p.Y%size)+size)%size)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
