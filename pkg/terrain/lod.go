// Package terrain streams a variable-resolution terrain surface around a moving target.
//
// Samples are pulled from a Source, meshed into fixed-size Chunks and kept in a
// toroidal grid owned by a Streamer. Each grid ring is assigned a level of detail
// and chunk edges facing a coarser ring are stitched with degenerate patches.
package terrain

import (
	"errors"
	"fmt"
	"image"
)

// Terrain errors.
var (
	ErrConfiguration = errors.New("invalid terrain configuration")
	ErrSampleCount   = errors.New("unexpected sample count")
)

// LevelOfDetail describes one resolution tier of the streamed grid.
type LevelOfDetail struct {
	SampleFrequency int `yaml:"sample_frequency"` // Stride between samples in finest-LOD units
	LayerCount      int `yaml:"layer_count"`      // Number of grid rings using this LOD
}

// BuildLayerMap returns the LOD index of every ring, ring 0 being the grid center.
func BuildLayerMap(lods []LevelOfDetail) []int {
	var layers []int
	for lod, l := range lods {
		for range l.LayerCount {
			layers = append(layers, lod)
		}
	}
	return layers
}

// Frequencies returns the sample frequency of every LOD.
func Frequencies(lods []LevelOfDetail) []int {
	out := make([]int, len(lods))
	for i, l := range lods {
		out[i] = l.SampleFrequency
	}
	return out
}

// Config holds the construction parameters of a Streamer.
type Config struct {
	MapSize   image.Point // Map extent in finest-LOD units, centered on the origin
	ChunkSize int         // Chunk edge in finest-LOD units
	LODs      []LevelOfDetail
	Colors    ColorPolicy
}

// Validate reports the first configuration problem found, wrapped in ErrConfiguration.
func (c Config) Validate() error {
	if c.MapSize.X <= 0 || c.MapSize.Y <= 0 {
		return fmt.Errorf("%w: map size %v must be positive", ErrConfiguration, c.MapSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", ErrConfiguration, c.ChunkSize)
	}
	if len(c.LODs) == 0 {
		return fmt.Errorf("%w: at least one level of detail is required", ErrConfiguration)
	}

	for i, lod := range c.LODs {
		f := lod.SampleFrequency
		if f < 1 {
			return fmt.Errorf("%w: LOD %d sample frequency %d must be at least 1", ErrConfiguration, i, f)
		}
		if lod.LayerCount < 1 {
			return fmt.Errorf("%w: LOD %d layer count %d must be at least 1", ErrConfiguration, i, lod.LayerCount)
		}
		if i > 0 {
			prev := c.LODs[i-1].SampleFrequency
			if f <= prev || f%prev != 0 {
				return fmt.Errorf("%w: LOD %d sample frequency %d is not a coarser multiple of %d",
					ErrConfiguration, i, f, prev)
			}
		}
		// The map center must fall on a sample of every LOD.
		if c.MapSize.X%(2*f) != 0 || c.MapSize.Y%(2*f) != 0 {
			return fmt.Errorf("%w: map size %v is not a multiple of twice the LOD %d sample frequency %d",
				ErrConfiguration, c.MapSize, i, f)
		}
		if c.ChunkSize%f != 0 {
			return fmt.Errorf("%w: chunk size %d is not divisible by LOD %d sample frequency %d",
				ErrConfiguration, c.ChunkSize, i, f)
		}
		if c.ChunkSize/f < 2 {
			return fmt.Errorf("%w: LOD %d leaves %d quads per chunk edge, need at least 2",
				ErrConfiguration, i, c.ChunkSize/f)
		}
		if i > 0 {
			ratio := f / c.LODs[i-1].SampleFrequency
			if (c.ChunkSize/c.LODs[i-1].SampleFrequency)%ratio != 0 {
				return fmt.Errorf("%w: LOD %d chunk edge is not divisible by patch length %d",
					ErrConfiguration, i-1, ratio)
			}
		}
	}

	return nil
}
