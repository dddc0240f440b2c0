// Package noise generates terrain samples procedurally.
package noise

import (
	"errors"
	"fmt"
	"image"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"

	"github.com/Faultbox/midgard-terrain/pkg/terrainfile"
)

// Algorithm selects the noise function.
type Algorithm string

const (
	Perlin      Algorithm = "perlin"
	OpenSimplex Algorithm = "opensimplex"
)

var ErrUnknownAlgorithm = errors.New("unknown noise algorithm")

// Config holds noise parameters. Heights are Offset + Amplitude * fractal(x/Scale, z/Scale).
type Config struct {
	Algorithm   Algorithm `yaml:"algorithm"`
	Seed        int64     `yaml:"seed"`
	Scale       float32   `yaml:"scale"`     // World units per noise period
	Amplitude   float32   `yaml:"amplitude"` // Height range around Offset
	Offset      float32   `yaml:"offset"`
	Octaves     int       `yaml:"octaves"`
	Persistence float32   `yaml:"persistence"` // Amplitude factor per octave
	Lacunarity  float32   `yaml:"lacunarity"`  // Frequency factor per octave
}

// DefaultConfig returns gently rolling hills.
func DefaultConfig() Config {
	return Config{
		Algorithm:   OpenSimplex,
		Seed:        1,
		Scale:       256,
		Amplitude:   80,
		Offset:      20,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

// Source is a terrain.Source backed by a noise function.
type Source struct {
	cfg         Config
	frequencies []int
	eval        func(x, z float32) float32
}

// New creates a source for the given LOD sample frequencies.
func New(cfg Config, frequencies []int) (*Source, error) {
	if cfg.Scale <= 0 {
		return nil, fmt.Errorf("noise scale %f must be positive", cfg.Scale)
	}
	if cfg.Octaves < 1 {
		cfg.Octaves = 1
	}
	if cfg.Persistence <= 0 || cfg.Lacunarity <= 0 {
		return nil, fmt.Errorf("noise persistence %f and lacunarity %f must be positive",
			cfg.Persistence, cfg.Lacunarity)
	}
	if len(frequencies) == 0 {
		frequencies = []int{1}
	}

	s := &Source{cfg: cfg, frequencies: frequencies}

	switch cfg.Algorithm {
	case Perlin:
		p := perlin.NewPerlin(float64(1/cfg.Persistence), float64(cfg.Lacunarity), cfg.Octaves, cfg.Seed)
		s.eval = func(x, z float32) float32 {
			return float32(p.Noise2D(float64(x), float64(z)))
		}
	case OpenSimplex, "":
		n := opensimplex.New32(cfg.Seed)
		s.eval = func(x, z float32) float32 {
			var sum float32
			amplitude := float32(1)
			for range cfg.Octaves {
				sum += n.Eval2(x, z) * amplitude
				x *= cfg.Lacunarity
				z *= cfg.Lacunarity
				amplitude *= cfg.Persistence
			}
			return sum
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}

	return s, nil
}

// HeightAt returns the height at a world position.
func (s *Source) HeightAt(x, z float32) float32 {
	return s.cfg.Offset + s.cfg.Amplitude*s.eval(x/s.cfg.Scale, z/s.cfg.Scale)
}

// NormalAt returns the surface normal at a world position, estimated from the
// four neighbours spacing units away.
func (s *Source) NormalAt(x, z, spacing float32) mgl32.Vec3 {
	h := s.HeightAt(x, z)
	edge := func(dx, dz float32) mgl32.Vec3 {
		return mgl32.Vec3{dx, s.HeightAt(x+dx, z+dz) - h, dz}.Normalize()
	}

	north := edge(0, -spacing)
	east := edge(spacing, 0)
	south := edge(0, spacing)
	west := edge(-spacing, 0)

	n := north.Cross(west).
		Add(west.Cross(south)).
		Add(south.Cross(east)).
		Add(east.Cross(north))
	return n.Normalize()
}

// SectionHeights samples (size+1)^2 heights of an LOD-local section.
func (s *Source) SectionHeights(nw, size image.Point, lod int) ([]float32, error) {
	f, err := s.frequency(lod, size)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, (size.X+1)*(size.Y+1))
	for j := range size.Y + 1 {
		for i := range size.X + 1 {
			out = append(out, s.HeightAt(float32((nw.X+i)*f), float32((nw.Y+j)*f)))
		}
	}
	return out, nil
}

// SectionNormals samples (size+1)^2 normals of an LOD-local section.
func (s *Source) SectionNormals(nw, size image.Point, lod int) ([]mgl32.Vec3, error) {
	f, err := s.frequency(lod, size)
	if err != nil {
		return nil, err
	}

	out := make([]mgl32.Vec3, 0, (size.X+1)*(size.Y+1))
	for j := range size.Y + 1 {
		for i := range size.X + 1 {
			out = append(out, s.NormalAt(float32((nw.X+i)*f), float32((nw.Y+j)*f), float32(f)))
		}
	}
	return out, nil
}

func (s *Source) frequency(lod int, size image.Point) (int, error) {
	if lod < 0 || lod >= len(s.frequencies) {
		return 0, fmt.Errorf("%w: LOD %d of %d", terrainfile.ErrOutOfRange, lod, len(s.frequencies))
	}
	if size.X < 0 || size.Y < 0 {
		return 0, fmt.Errorf("%w: negative size %v", terrainfile.ErrOutOfRange, size)
	}
	return s.frequencies[lod], nil
}
