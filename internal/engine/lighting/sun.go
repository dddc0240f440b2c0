// Package lighting provides lighting utilities for terrain shading.
package lighting

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SunDirection converts sun angles to the direction its light travels.
// Azimuth is the rotation around the Y axis in degrees (0 places the sun
// towards +Z), elevation is the angle above the horizon (clamped to 0-90).
func SunDirection(azimuth, elevation float32) mgl32.Vec3 {
	az := mgl32.DegToRad(azimuth)
	el := mgl32.DegToRad(mgl32.Clamp(elevation, 0, 90))

	toSun := mgl32.Vec3{
		math32.Cos(el) * math32.Sin(az),
		math32.Sin(el),
		math32.Cos(el) * math32.Cos(az),
	}
	return toSun.Mul(-1)
}
