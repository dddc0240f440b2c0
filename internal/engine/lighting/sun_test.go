package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name               string
		azimuth, elevation float32
		want               mgl32.Vec3
	}{
		{"zenith", 0, 90, mgl32.Vec3{0, -1, 0}},
		{"south horizon", 0, 0, mgl32.Vec3{0, 0, -1}},
		{"east horizon", 90, 0, mgl32.Vec3{-1, 0, 0}},
		{"below horizon clamps", 180, -30, mgl32.Vec3{0, 0, 1}},
		{"above zenith clamps", 45, 120, mgl32.Vec3{0, -1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SunDirection(tt.azimuth, tt.elevation)
			if !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("SunDirection(%v, %v) = %v, want %v", tt.azimuth, tt.elevation, got, tt.want)
			}
		})
	}
}

func TestSunDirection_Unit(t *testing.T) {
	for az := float32(0); az < 360; az += 30 {
		if l := SunDirection(az, 40).Len(); l < 0.9999 || l > 1.0001 {
			t.Errorf("direction at azimuth %v has length %v", az, l)
		}
	}
}
