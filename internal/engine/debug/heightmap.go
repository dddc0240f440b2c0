package debug

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-terrain/pkg/terrain"
)

// Heightmap paints a sample grid with the debug coloring rule, shaded by the
// normals against a directional light. Row 0 is the north edge.
func Heightmap(samples image.Point, heights []float32, normals []mgl32.Vec3, colors terrain.ColorPolicy, light mgl32.Vec3) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, samples.X, samples.Y))
	toLight := light.Normalize().Mul(-1)

	for y := range samples.Y {
		for x := range samples.X {
			i := y*samples.X + x
			shade := float32(1)
			if normals != nil {
				shade = 0.35 + 0.65*max(normals[i].Normalize().Dot(toLight), 0)
			}
			c := colors.Color(heights[i])
			img.SetRGBA(x, y, color.RGBA{
				R: channel(c.X() * shade),
				G: channel(c.Y() * shade),
				B: channel(c.Z() * shade),
				A: channel(c.W()),
			})
		}
	}
	return img
}

func channel(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
