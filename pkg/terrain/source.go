package terrain

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-terrain/pkg/terrainfile"
)

// Source provides terrain samples in LOD-local coordinates: units of the LOD's
// sample frequency, origin at the map center. A section of size (w, h) starting
// at nw covers (w+1)*(h+1) samples in row-major order.
type Source interface {
	SectionHeights(nw, size image.Point, lod int) ([]float32, error)
	SectionNormals(nw, size image.Point, lod int) ([]mgl32.Vec3, error)
}

// ResourceSource reads sections from a baked terrain resource.
type ResourceSource struct {
	r      io.ReaderAt
	layout *terrainfile.Layout
}

// NewResourceSource wraps r, which holds size bytes laid out for a map of
// mapSize units sampled at the given frequencies. A negative size skips the
// length check.
func NewResourceSource(r io.ReaderAt, size int64, mapSize image.Point, frequencies []int) (*ResourceSource, error) {
	layout, err := terrainfile.NewLayout(mapSize, frequencies)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if size >= 0 && size < layout.Size() {
		return nil, fmt.Errorf("%w: resource has %d bytes, layout needs %d",
			terrainfile.ErrTruncated, size, layout.Size())
	}

	return &ResourceSource{r: r, layout: layout}, nil
}

// Layout returns the block layout of the resource.
func (s *ResourceSource) Layout() *terrainfile.Layout {
	return s.layout
}

// SectionHeights reads the heights of a section.
func (s *ResourceSource) SectionHeights(nw, size image.Point, lod int) ([]float32, error) {
	block, rect, err := s.section(nw, size, lod)
	if err != nil {
		return nil, err
	}

	buf, err := s.read(block, block.HeightOffset, terrainfile.HeightStride, rect)
	if err != nil {
		return nil, fmt.Errorf("heights at %v (LOD %d): %w", nw, lod, err)
	}

	heights := make([]float32, rect.Dx()*rect.Dy())
	terrainfile.DecodeHeights(buf, heights)
	return heights, nil
}

// SectionNormals reads the normals of a section.
func (s *ResourceSource) SectionNormals(nw, size image.Point, lod int) ([]mgl32.Vec3, error) {
	block, rect, err := s.section(nw, size, lod)
	if err != nil {
		return nil, err
	}

	buf, err := s.read(block, block.NormalOffset, terrainfile.NormalStride, rect)
	if err != nil {
		return nil, fmt.Errorf("normals at %v (LOD %d): %w", nw, lod, err)
	}

	normals := make([]mgl32.Vec3, rect.Dx()*rect.Dy())
	terrainfile.DecodeNormals(buf, normals)
	return normals, nil
}

func (s *ResourceSource) section(nw, size image.Point, lod int) (terrainfile.Block, image.Rectangle, error) {
	block, err := s.layout.Block(lod)
	if err != nil {
		return block, image.Rectangle{}, err
	}
	rect, err := block.Section(nw, size)
	return block, rect, err
}

// read fetches the rows of rect one ReadAt at a time.
func (s *ResourceSource) read(block terrainfile.Block, base int64, stride int, rect image.Rectangle) ([]byte, error) {
	rowSize := rect.Dx() * stride
	buf := make([]byte, rowSize*rect.Dy())

	for row := range rect.Dy() {
		off := block.RowOffset(base, stride, image.Pt(rect.Min.X, rect.Min.Y+row))
		dst := buf[row*rowSize : (row+1)*rowSize]

		n, err := s.r.ReadAt(dst, off)
		if n == len(dst) {
			continue
		}
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: short read of %d bytes at %d", terrainfile.ErrTruncated, n, off)
		}
		return nil, fmt.Errorf("reading row at %d: %w", off, err)
	}

	return buf, nil
}
