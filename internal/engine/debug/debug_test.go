package debug

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/midgard-terrain/pkg/terrain"
)

func TestFlipRGBA(t *testing.T) {
	// Two rows, bottom row first as OpenGL returns them.
	pixels := []byte{
		1, 1, 1, 255, 2, 2, 2, 255,
		3, 3, 3, 255, 4, 4, 4, 255,
	}

	img, err := FlipRGBA(pixels, 2, 2)
	if err != nil {
		t.Fatalf("FlipRGBA failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{3, 3, 3, 255}) {
		t.Errorf("expected top-left from last row, got %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{2, 2, 2, 255}) {
		t.Errorf("expected bottom-right from first row, got %v", got)
	}

	if _, err := FlipRGBA(pixels[:4], 2, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestScreenshots_Capture(t *testing.T) {
	for _, format := range []string{"png", "bmp"} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "shots")
			s := NewScreenshots(dir, "terrain", format)

			path, err := s.Capture(make([]byte, 3*2*4), 3, 2)
			if err != nil {
				t.Fatalf("Capture failed: %v", err)
			}
			if !strings.HasPrefix(filepath.Base(path), "terrain_") || filepath.Ext(path) != "."+format {
				t.Errorf("unexpected screenshot name %s", path)
			}
			if _, err := os.Stat(path); err != nil {
				t.Errorf("screenshot not written: %v", err)
			}
		})
	}
}

func TestScreenshots_Filename(t *testing.T) {
	s := NewScreenshots("", "shot", "")
	at := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	if got := s.Filename(at); got != "shot_2024-05-01_13-04-05.000.png" {
		t.Errorf("unexpected filename %s", got)
	}
}

func TestSaveImage_BMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.BMP")
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(1, 2, color.RGBA{200, 10, 20, 255})

	if err := SaveImage(path, img); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("expected a BMP file: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("expected bounds %v, got %v", img.Bounds(), decoded.Bounds())
	}
	r, g, b, _ := decoded.At(1, 2).RGBA()
	if r>>8 != 200 || g>>8 != 10 || b>>8 != 20 {
		t.Errorf("unexpected pixel %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestHeightmap(t *testing.T) {
	colors := terrain.ColorPolicy{
		SnowHeight: 60,
		SandHeight: 2,
		Grass:      mgl32.Vec4{0.2, 0.6, 0.2, 1},
		Snow:       mgl32.Vec4{1, 1, 1, 1},
		Sand:       mgl32.Vec4{0.8, 0.6, 0.4, 1},
	}
	heights := []float32{0, 10, 100, 10}
	up := mgl32.Vec3{0, 1, 0}
	normals := []mgl32.Vec3{up, up, up, {1, 0, 0}}

	img := Heightmap(image.Pt(2, 2), heights, normals, colors, mgl32.Vec3{0, -1, 0})

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, color.RGBA{204, 153, 102, 255}}, // sand, fully lit
		{1, 0, color.RGBA{51, 153, 51, 255}},
		{0, 1, color.RGBA{255, 255, 255, 255}},
		{1, 1, color.RGBA{18, 54, 18, 255}}, // facing away from the light
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d, %d): expected %v, got %v", tt.x, tt.y, tt.want, got)
		}
	}

	flat := Heightmap(image.Pt(2, 2), heights, nil, colors, mgl32.Vec3{0, -1, 0})
	if got := flat.RGBAAt(1, 1); got != (color.RGBA{51, 153, 51, 255}) {
		t.Errorf("expected unshaded grass without normals, got %v", got)
	}
}
