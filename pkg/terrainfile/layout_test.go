package terrainfile

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewLayout_Offsets(t *testing.T) {
	layout, err := NewLayout(image.Pt(16, 16), []int{1, 2, 4})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	if len(layout.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(layout.Blocks))
	}

	// Each block's offset is the sum of all preceding blocks.
	var want int64
	for i, b := range layout.Blocks {
		if b.HeightOffset != want {
			t.Errorf("block %d: expected height offset %d, got %d", i, want, b.HeightOffset)
		}
		want += int64(b.SampleCount()) * HeightStride
		if b.NormalOffset != want {
			t.Errorf("block %d: expected normal offset %d, got %d", i, want, b.NormalOffset)
		}
		want += int64(b.SampleCount()) * NormalStride
	}

	// 17*17 + 9*9 + 5*5 samples, 16 bytes each.
	if got := layout.Size(); got != (289+81+25)*16 {
		t.Errorf("expected size %d, got %d", (289+81+25)*16, got)
	}
}

func TestNewLayout_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		mapSize     image.Point
		frequencies []int
	}{
		{"zero map", image.Pt(0, 16), []int{1}},
		{"zero frequency", image.Pt(16, 16), []int{0}},
		{"not a multiple", image.Pt(24, 24), []int{2, 3}},
		{"descending", image.Pt(16, 16), []int{4, 2}},
		{"map not divisible", image.Pt(18, 18), []int{1, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLayout(tt.mapSize, tt.frequencies)
			if !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("expected ErrInvalidLayout, got %v", err)
			}
		})
	}
}

func TestNewLayout_DefaultFrequency(t *testing.T) {
	layout, err := NewLayout(image.Pt(8, 8), nil)
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	if len(layout.Blocks) != 1 || layout.Blocks[0].Frequency != 1 {
		t.Errorf("expected a single frequency-1 block, got %+v", layout.Blocks)
	}
}

func TestBlock_ToResourceSpaceCenter(t *testing.T) {
	layout, err := NewLayout(image.Pt(16, 16), []int{1, 2, 4, 8})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	for _, b := range layout.Blocks {
		got := b.ToResourceSpace(image.Point{})
		want := image.Pt(b.Samples().X/2, b.Samples().Y/2)
		if got != want {
			t.Errorf("frequency %d: center maps to %v, want %v", b.Frequency, got, want)
		}
		if got != b.Size.Div(2) {
			t.Errorf("frequency %d: center %v is not the geometric center %v", b.Frequency, got, b.Size.Div(2))
		}
	}
}

func TestBlock_Section(t *testing.T) {
	layout, err := NewLayout(image.Pt(16, 16), []int{1, 2})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	tests := []struct {
		name    string
		lod     int
		nw      image.Point
		size    image.Point
		want    image.Rectangle
		wantErr bool
	}{
		{"center chunk", 0, image.Pt(0, 0), image.Pt(4, 4), image.Rect(8, 8, 13, 13), false},
		{"whole map", 0, image.Pt(-8, -8), image.Pt(16, 16), image.Rect(0, 0, 17, 17), false},
		{"coarse whole map", 1, image.Pt(-4, -4), image.Pt(8, 8), image.Rect(0, 0, 9, 9), false},
		{"past east edge", 0, image.Pt(6, 0), image.Pt(4, 4), image.Rectangle{}, true},
		{"past north edge", 1, image.Pt(0, -5), image.Pt(2, 2), image.Rectangle{}, true},
		{"negative size", 0, image.Pt(0, 0), image.Pt(-1, 2), image.Rectangle{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := layout.Block(tt.lod)
			got, err := b.Section(tt.nw, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrOutOfRange) {
					t.Errorf("expected ErrOutOfRange, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Section failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLayout_BlockOutOfRange(t *testing.T) {
	layout, _ := NewLayout(image.Pt(4, 4), []int{1})
	if _, err := layout.Block(1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestEncode_SubsamplesCoarseBlocks(t *testing.T) {
	layout, err := NewLayout(image.Pt(4, 4), []int{1, 2})
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	grid := NewGrid(layout)
	for y := range grid.Samples.Y {
		for x := range grid.Samples.X {
			grid.Set(x, y, float32(y*10+x), mgl32.Vec3{0, 1, 0})
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, layout, grid); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	data := buf.Bytes()
	if int64(len(data)) != layout.Size() {
		t.Fatalf("expected %d bytes, got %d", layout.Size(), len(data))
	}

	coarse := layout.Blocks[1]
	heights := make([]float32, coarse.SampleCount())
	DecodeHeights(data[coarse.HeightOffset:], heights)

	// Coarse sample (1, 2) is fine sample (2, 4).
	if got := heights[2*coarse.Samples().X+1]; got != 42 {
		t.Errorf("expected coarse height 42, got %f", got)
	}

	normals := make([]mgl32.Vec3, coarse.SampleCount())
	DecodeNormals(data[coarse.NormalOffset:], normals)
	for i, n := range normals {
		if n != (mgl32.Vec3{0, 1, 0}) {
			t.Fatalf("normal %d: expected up vector, got %v", i, n)
		}
	}
}

func TestEncode_GridMismatch(t *testing.T) {
	small, _ := NewLayout(image.Pt(4, 4), nil)
	large, _ := NewLayout(image.Pt(8, 8), nil)

	var buf bytes.Buffer
	if err := Encode(&buf, large, NewGrid(small)); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
}
