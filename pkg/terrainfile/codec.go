package terrainfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid holds full-resolution samples of a map in resource space.
type Grid struct {
	Samples image.Point
	Heights []float32
	Normals []mgl32.Vec3
}

// NewGrid allocates a grid matching the finest block of the layout.
func NewGrid(l *Layout) *Grid {
	s := l.Blocks[0].Samples()
	return &Grid{
		Samples: s,
		Heights: make([]float32, s.X*s.Y),
		Normals: make([]mgl32.Vec3, s.X*s.Y),
	}
}

// Set stores a sample at resource-space index (x, y).
func (g *Grid) Set(x, y int, height float32, normal mgl32.Vec3) {
	i := y*g.Samples.X + x
	g.Heights[i] = height
	g.Normals[i] = normal
}

// At returns the sample at resource-space index (x, y).
func (g *Grid) At(x, y int) (float32, mgl32.Vec3) {
	i := y*g.Samples.X + x
	return g.Heights[i], g.Normals[i]
}

// Encode writes every block of the layout. Coarser blocks are produced by
// taking every k-th sample of the grid, k being the frequency ratio to the
// finest block.
func Encode(w io.Writer, l *Layout, g *Grid) error {
	if g.Samples != l.Blocks[0].Samples() {
		return fmt.Errorf("%w: grid has %v samples, layout expects %v",
			ErrInvalidLayout, g.Samples, l.Blocks[0].Samples())
	}

	bw := bufio.NewWriter(w)
	finest := l.Blocks[0].Frequency

	for _, block := range l.Blocks {
		ratio := block.Frequency / finest
		samples := block.Samples()

		heights := make([]float32, 0, block.SampleCount())
		normals := make([]mgl32.Vec3, 0, block.SampleCount())
		for row := range samples.Y {
			for col := range samples.X {
				h, n := g.At(col*ratio, row*ratio)
				heights = append(heights, h)
				normals = append(normals, n)
			}
		}

		if err := binary.Write(bw, binary.LittleEndian, heights); err != nil {
			return fmt.Errorf("writing heights (frequency %d): %w", block.Frequency, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, normals); err != nil {
			return fmt.Errorf("writing normals (frequency %d): %w", block.Frequency, err)
		}
	}

	return bw.Flush()
}

// DecodeHeights decodes little-endian float32 heights from buf into dst.
func DecodeHeights(buf []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*HeightStride:]))
	}
}

// DecodeNormals decodes little-endian float32 triples from buf into dst.
func DecodeNormals(buf []byte, dst []mgl32.Vec3) {
	for i := range dst {
		o := i * NormalStride
		dst[i] = mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(buf[o:])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[o+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[o+8:])),
		}
	}
}
