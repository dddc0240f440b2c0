package terrain

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Edge identifies one side of a chunk.
type Edge int

const (
	North Edge = iota
	East
	South
	West
)

// Edges lists all sides in index buffer order.
var Edges = [4]Edge{North, East, South, West}

func (e Edge) String() string {
	switch e {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// Quad corners, in vertex order.
const (
	cornerNW = iota
	cornerSW
	cornerSE
	cornerNE
)

var (
	cornerOffsets  = [4]image.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	quadTexCoords  = [4]mgl32.Vec2{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	splitTriangles = [2][3]int{{cornerNW, cornerSW, cornerSE}, {cornerNW, cornerSE, cornerNE}}
	flipTriangles  = [2][3]int{{cornerNW, cornerSW, cornerNE}, {cornerSW, cornerSE, cornerNE}}
)

// Chunk is a square terrain patch of size x size quads. Every quad owns four
// vertices so that colors and texture coordinates stay per-quad. The NE and SW
// corner quads are split along the opposite diagonal so that each border
// triangle touches exactly one edge.
//
// The index buffer is laid out as the north, east, south and west border
// sections (one triangle per edge quad each) followed by the interior
// triangles. Border sections are rewritten when patch lengths change.
type Chunk struct {
	mesh    Mesh
	size    int
	scale   float32
	origin  image.Point
	colors  ColorPolicy
	patches [4]int
}

// NewChunk creates a chunk of size x size quads, each scale world units wide,
// backed by a new mesh from host.
func NewChunk(host Host, size int, scale float32, colors ColorPolicy) (*Chunk, error) {
	c := &Chunk{}
	if err := c.init(host, size, scale, colors); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chunk) init(host Host, size int, scale float32, colors ColorPolicy) error {
	if size < 2 {
		return fmt.Errorf("%w: chunk needs at least 2 quads per edge, got %d", ErrConfiguration, size)
	}
	if colors.isZero() {
		colors = DefaultColorPolicy()
	}

	mesh, err := host.CreateMesh(VertexCount(size), IndexCount(size))
	if err != nil {
		return fmt.Errorf("creating %dx%d chunk mesh: %w", size, size, err)
	}

	*c = Chunk{
		mesh:    mesh,
		size:    size,
		scale:   scale,
		colors:  colors,
		patches: [4]int{1, 1, 1, 1},
	}
	c.writeIndices()
	return nil
}

// VertexCount returns the vertex buffer length of a chunk of size x size quads.
func VertexCount(size int) int {
	return 4 * size * size
}

// IndexCount returns the index buffer length of a chunk of size x size quads.
func IndexCount(size int) int {
	return 6 * size * size
}

// Mesh returns the backing mesh.
func (c *Chunk) Mesh() Mesh {
	return c.mesh
}

// Size returns the number of quads along an edge.
func (c *Chunk) Size() int {
	return c.size
}

// Origin returns the world position of the north-west corner.
func (c *Chunk) Origin() image.Point {
	return c.origin
}

// Patches returns the current patch length of every edge.
func (c *Chunk) Patches() [4]int {
	return c.patches
}

// BorderIndices returns the index section of edge e.
func (c *Chunk) BorderIndices(e Edge) []uint32 {
	n := 3 * c.size
	return c.mesh.Data().Indices[int(e)*n : int(e+1)*n]
}

// SetVertices fills the vertex buffer. origin is the world position of the
// north-west corner; heights and normals hold (size+1)^2 samples, row-major.
func (c *Chunk) SetVertices(origin image.Point, heights []float32, normals []mgl32.Vec3) error {
	samples := c.size + 1
	if len(heights) != samples*samples || len(normals) != samples*samples {
		return fmt.Errorf("%w: %d heights and %d normals for %d samples",
			ErrSampleCount, len(heights), len(normals), samples*samples)
	}

	c.origin = origin
	data := c.mesh.Lock()
	defer c.mesh.Unlock()

	for row := range c.size {
		for col := range c.size {
			base := c.quadVertex(col, row, 0)

			top := math32.Inf(-1)
			for corner, off := range cornerOffsets {
				s := (row+off.Y)*samples + col + off.X
				h := heights[s]
				top = max(top, h)

				data.Vertices[base+uint32(corner)] = Vertex{
					Position: mgl32.Vec3{
						float32(origin.X) + float32(col+off.X)*c.scale,
						h,
						float32(origin.Y) + float32(row+off.Y)*c.scale,
					},
					Normal:   normals[s],
					TexCoord: quadTexCoords[corner],
				}
			}

			color := c.colors.Color(top)
			if c.colors.Borders && (row == 0 || col == 0 || row == c.size-1 || col == c.size-1) {
				color = borderColor
			}
			for corner := range 4 {
				data.Vertices[base+uint32(corner)].Color = color
			}
		}
	}

	return nil
}

// Patch sets the patch length of a single edge.
func (c *Chunk) Patch(e Edge, length int) error {
	patches := c.patches
	patches[e] = length
	return c.SetPatches(patches)
}

// SetPatches sets the patch length of every edge, indexed by Edge. A length of
// k > 1 collapses each run of k edge quads into one join triangle so that the
// edge matches a neighbour k times coarser. The index buffer is only rewritten
// when a length changes.
func (c *Chunk) SetPatches(patches [4]int) error {
	for _, e := range Edges {
		k := patches[e]
		if k < 1 || c.size%k != 0 {
			return fmt.Errorf("%w: patch length %d on %s edge does not divide chunk size %d",
				ErrConfiguration, k, e, c.size)
		}
	}
	if patches == c.patches {
		return nil
	}

	c.patches = patches
	c.writeIndices()
	return nil
}

// Height returns the terrain height at a position relative to the chunk's
// north-west corner, or 0 outside the chunk.
func (c *Chunk) Height(local mgl32.Vec2) float32 {
	col := int(math32.Floor(local.X() / c.scale))
	row := int(math32.Floor(local.Y() / c.scale))
	if col < 0 || row < 0 || col >= c.size || row >= c.size {
		return 0
	}

	xl := local.X() - float32(col)*c.scale
	zl := local.Y() - float32(row)*c.scale

	tris := splitTriangles
	upper := xl >= zl
	if c.flipped(col, row) {
		tris = flipTriangles
		upper = xl+zl >= c.scale
	}
	tri := tris[0]
	if upper {
		tri = tris[1]
	}

	vertices := c.mesh.Data().Vertices
	a := vertices[c.quadVertex(col, row, tri[0])].Position
	b := vertices[c.quadVertex(col, row, tri[1])].Position
	d := vertices[c.quadVertex(col, row, tri[2])].Position

	n := b.Sub(a).Cross(d.Sub(a))
	if n.Y() == 0 {
		return a.Y()
	}

	px := float32(c.origin.X) + local.X()
	pz := float32(c.origin.Y) + local.Y()
	return a.Y() - (n.X()*(px-a.X())+n.Z()*(pz-a.Z()))/n.Y()
}

func (c *Chunk) quadVertex(col, row, corner int) uint32 {
	return uint32((row*c.size+col)*4 + corner)
}

func (c *Chunk) flipped(col, row int) bool {
	n := c.size - 1
	return (col == n && row == 0) || (col == 0 && row == n)
}

// latticeVertex returns the canonical vertex of lattice point p.
func (c *Chunk) latticeVertex(p image.Point) uint32 {
	col, row, corner := p.X, p.Y, cornerNW
	switch {
	case p.X == c.size && p.Y == c.size:
		col, row, corner = c.size-1, c.size-1, cornerSE
	case p.X == c.size:
		col, corner = c.size-1, cornerNE
	case p.Y == c.size:
		row, corner = c.size-1, cornerSW
	}
	return c.quadVertex(col, row, corner)
}

// edgeOf returns the patched edge holding lattice point p and its position
// along that edge.
func (c *Chunk) edgeOf(p image.Point) (Edge, int, bool) {
	n := c.size
	var e Edge
	var along int
	switch {
	case p.Y == 0:
		e, along = North, p.X
	case p.X == n:
		e, along = East, p.Y
	case p.Y == n:
		e, along = South, p.X
	case p.X == 0:
		e, along = West, p.Y
	default:
		return 0, 0, false
	}
	return e, along, c.patches[e] > 1
}

// vertexRef resolves the index of a quad corner, snapping vertices on patched
// edges to the nearest patch end.
func (c *Chunk) vertexRef(col, row, corner int) uint32 {
	p := image.Pt(col, row).Add(cornerOffsets[corner])

	e, along, patched := c.edgeOf(p)
	if !patched {
		return c.quadVertex(col, row, corner)
	}

	k := c.patches[e]
	j := along % k
	target := along
	if j > 0 {
		target = along - j
		if j >= (k+1)/2 {
			target += k
		}
	}

	switch e {
	case North:
		p = image.Pt(target, 0)
	case East:
		p = image.Pt(c.size, target)
	case South:
		p = image.Pt(target, c.size)
	case West:
		p = image.Pt(0, target)
	}
	return c.latticeVertex(p)
}

// edgeQuad returns the quad at position along edge e.
func (c *Chunk) edgeQuad(e Edge, along int) (col, row int) {
	switch e {
	case North:
		return along, 0
	case East:
		return c.size - 1, along
	case South:
		return along, c.size - 1
	default:
		return 0, along
	}
}

// borderTriangle returns which triangle of an edge quad lies against edge e.
func (c *Chunk) borderTriangle(e Edge, col, row int) int {
	switch e {
	case North:
		if c.flipped(col, row) {
			return 0
		}
		return 1
	case East:
		return 1
	case South:
		if c.flipped(col, row) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (c *Chunk) writeIndices() {
	data := c.mesh.Lock()
	defer c.mesh.Unlock()

	claimed := make([]bool, c.size*c.size*2)
	pos := 0
	emit := func(col, row, t int) {
		tris := splitTriangles
		if c.flipped(col, row) {
			tris = flipTriangles
		}
		for _, corner := range tris[t] {
			data.Indices[pos] = c.vertexRef(col, row, corner)
			pos++
		}
		claimed[(row*c.size+col)*2+t] = true
	}

	for _, e := range Edges {
		for along := range c.size {
			col, row := c.edgeQuad(e, along)
			emit(col, row, c.borderTriangle(e, col, row))
		}
	}

	for row := range c.size {
		for col := range c.size {
			for t := range 2 {
				if !claimed[(row*c.size+col)*2+t] {
					emit(col, row, t)
				}
			}
		}
	}
}
