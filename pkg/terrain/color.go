package terrain

import "github.com/go-gl/mathgl/mgl32"

// ColorPolicy assigns a vertex color to each quad from its highest corner.
type ColorPolicy struct {
	SnowHeight float32 `yaml:"snow_height"` // Quads peaking above this are snow
	SandHeight float32 `yaml:"sand_height"` // Quads peaking below this are sand

	Grass mgl32.Vec4 `yaml:"-"`
	Snow  mgl32.Vec4 `yaml:"-"`
	Sand  mgl32.Vec4 `yaml:"-"`

	// Borders paints the outermost quad ring of every chunk white.
	Borders bool `yaml:"borders"`
}

// DefaultColorPolicy returns the grass/snow/sand palette.
func DefaultColorPolicy() ColorPolicy {
	return ColorPolicy{
		SnowHeight: 60,
		SandHeight: 2,
		Grass:      mgl32.Vec4{0, 0.5, 0, 1},
		Snow:       mgl32.Vec4{0.8, 0.8, 0.8, 1},
		Sand:       mgl32.Vec4{0.83, 0.65, 0.15, 1},
	}
}

// Color returns the color of a quad whose highest corner is at height.
// Sand wins when both thresholds apply.
func (p ColorPolicy) Color(height float32) mgl32.Vec4 {
	c := p.Grass
	if height > p.SnowHeight {
		c = p.Snow
	}
	if height < p.SandHeight {
		c = p.Sand
	}
	return c
}

var borderColor = mgl32.Vec4{1, 1, 1, 1}

func (p ColorPolicy) isZero() bool {
	return p == ColorPolicy{}
}
