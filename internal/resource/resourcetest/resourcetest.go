// Package resourcetest writes terrain resource fixtures for tests.
package resourcetest

import (
	"bytes"
	"image"
	"os"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/midgard-terrain/pkg/terrainfile"
)

// SampleFunc returns the height and normal at an integer world position.
type SampleFunc func(x, z int) (float32, mgl32.Vec3)

// Encode builds the resource bytes of a map of mapSize units sampled at the
// given frequencies.
func Encode(tb testing.TB, mapSize image.Point, frequencies []int, sample SampleFunc) (*terrainfile.Layout, []byte) {
	tb.Helper()

	layout, err := terrainfile.NewLayout(mapSize, frequencies)
	if err != nil {
		tb.Fatalf("NewLayout failed: %v", err)
	}

	grid := terrainfile.NewGrid(layout)
	f := layout.Blocks[0].Frequency
	half := grid.Samples.Div(2)
	for y := range grid.Samples.Y {
		for x := range grid.Samples.X {
			h, n := sample((x-half.X)*f, (y-half.Y)*f)
			grid.Set(x, y, h, n)
		}
	}

	var buf bytes.Buffer
	if err := terrainfile.Encode(&buf, layout, grid); err != nil {
		tb.Fatalf("Encode failed: %v", err)
	}
	return layout, buf.Bytes()
}

// WriteFile writes data to path, zstd-compressed when path ends in ".zst".
func WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()

	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			tb.Fatalf("zstd writer: %v", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
}
