// Package terrainfile describes the binary layout of baked multi-resolution terrain samples.
//
// A terrain resource is a plain concatenation of one block per level of detail,
// ordered by ascending sample frequency. Each block holds (W/f+1)*(H/f+1)
// little-endian float32 heights followed by the same number of float32 triples
// (unit normals), row-major, north to south then west to east. There is no header
// and no padding.
package terrainfile

import (
	"errors"
	"fmt"
	"image"
)

// Byte strides of a single sample.
const (
	HeightStride = 4
	NormalStride = 12
)

// Layout errors.
var (
	ErrInvalidLayout = errors.New("invalid terrain layout")
	ErrOutOfRange    = errors.New("terrain section out of range")
	ErrTruncated     = errors.New("truncated terrain resource")
)

// Block is the location of one level of detail inside a resource.
type Block struct {
	Frequency    int         // Sample frequency relative to the finest LOD
	Size         image.Point // LOD-local map size in samples units (map size / frequency)
	HeightOffset int64
	NormalOffset int64
}

// Samples returns the number of samples along each axis.
func (b Block) Samples() image.Point {
	return image.Pt(b.Size.X+1, b.Size.Y+1)
}

// SampleCount returns the number of samples in the block.
func (b Block) SampleCount() int {
	s := b.Samples()
	return s.X * s.Y
}

// End returns the offset just past the block's normals.
func (b Block) End() int64 {
	return b.NormalOffset + int64(b.SampleCount())*NormalStride
}

// ToResourceSpace converts an LOD-local sample position (origin at the map
// center) into a resource sample index (origin at the north-west corner).
func (b Block) ToResourceSpace(p image.Point) image.Point {
	s := b.Samples()
	return image.Pt(p.X+s.X/2, p.Y+s.Y/2)
}

// Section returns the resource-space sample rectangle covered by a query of
// size units starting at the LOD-local north-west position nw. The rectangle
// holds (size.X+1)*(size.Y+1) samples.
func (b Block) Section(nw, size image.Point) (image.Rectangle, error) {
	if size.X < 0 || size.Y < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: negative size %v", ErrOutOfRange, size)
	}

	min := b.ToResourceSpace(nw)
	rect := image.Rectangle{Min: min, Max: min.Add(size).Add(image.Pt(1, 1))}
	bounds := image.Rectangle{Max: b.Samples()}
	if !rect.In(bounds) {
		return image.Rectangle{}, fmt.Errorf("%w: section %v outside %v (frequency %d)",
			ErrOutOfRange, rect, bounds, b.Frequency)
	}
	return rect, nil
}

// RowOffset returns the absolute byte offset of sample p (resource space) in a
// block starting at base with the given stride.
func (b Block) RowOffset(base int64, stride int, p image.Point) int64 {
	rowSize := int64(b.Samples().X) * int64(stride)
	return base + int64(p.Y)*rowSize + int64(p.X)*int64(stride)
}

// Layout is the ordered set of LOD blocks of a terrain resource.
type Layout struct {
	MapSize image.Point
	Blocks  []Block
}

// NewLayout computes block offsets for a map of mapSize units sampled at the
// given frequencies. An empty frequency list means a single full-resolution LOD.
func NewLayout(mapSize image.Point, frequencies []int) (*Layout, error) {
	if mapSize.X <= 0 || mapSize.Y <= 0 {
		return nil, fmt.Errorf("%w: map size %v", ErrInvalidLayout, mapSize)
	}
	if len(frequencies) == 0 {
		frequencies = []int{1}
	}

	layout := &Layout{MapSize: mapSize}

	var offset int64
	for i, f := range frequencies {
		if f < 1 {
			return nil, fmt.Errorf("%w: sample frequency %d", ErrInvalidLayout, f)
		}
		if i > 0 && (f <= frequencies[i-1] || f%frequencies[i-1] != 0) {
			return nil, fmt.Errorf("%w: sample frequency %d is not an ascending multiple of %d",
				ErrInvalidLayout, f, frequencies[i-1])
		}
		if mapSize.X%f != 0 || mapSize.Y%f != 0 {
			return nil, fmt.Errorf("%w: map size %v not divisible by sample frequency %d",
				ErrInvalidLayout, mapSize, f)
		}

		block := Block{
			Frequency: f,
			Size:      mapSize.Div(f),
		}
		block.HeightOffset = offset
		offset += int64(block.SampleCount()) * HeightStride
		block.NormalOffset = offset
		offset += int64(block.SampleCount()) * NormalStride

		layout.Blocks = append(layout.Blocks, block)
	}

	return layout, nil
}

// Block returns the block of the given LOD index.
func (l *Layout) Block(lod int) (Block, error) {
	if lod < 0 || lod >= len(l.Blocks) {
		return Block{}, fmt.Errorf("%w: LOD %d of %d", ErrOutOfRange, lod, len(l.Blocks))
	}
	return l.Blocks[lod], nil
}

// Size returns the total number of bytes described by the layout.
func (l *Layout) Size() int64 {
	if len(l.Blocks) == 0 {
		return 0
	}
	return l.Blocks[len(l.Blocks)-1].End()
}

// Frequencies returns the sample frequency of every block.
func (l *Layout) Frequencies() []int {
	out := make([]int, len(l.Blocks))
	for i, b := range l.Blocks {
		out[i] = b.Frequency
	}
	return out
}
