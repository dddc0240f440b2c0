// Package debug provides debug visualization utilities.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
)

// Screenshots writes captured frames to timestamped files.
type Screenshots struct {
	outputDir string
	prefix    string
	format    string // "png" or "bmp"
}

// NewScreenshots creates a capture handler. An empty format means png.
func NewScreenshots(outputDir, prefix, format string) *Screenshots {
	if format == "" {
		format = "png"
	}
	return &Screenshots{
		outputDir: outputDir,
		prefix:    prefix,
		format:    format,
	}
}

// Capture saves raw RGBA pixels read back from OpenGL.
func (s *Screenshots) Capture(pixels []byte, width, height int) (string, error) {
	img, err := FlipRGBA(pixels, width, height)
	if err != nil {
		return "", err
	}

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := s.Filename(time.Now())
	if err := SaveImage(filename, img); err != nil {
		return "", err
	}
	return filename, nil
}

// Filename returns the file a capture taken at t is written to.
func (s *Screenshots) Filename(t time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", s.prefix, t.Format("2006-01-02_15-04-05.000"), s.format)
	if s.outputDir != "" {
		name = filepath.Join(s.outputDir, name)
	}
	return name
}

// FlipRGBA copies bottom-up OpenGL pixel rows into a top-down image.
func FlipRGBA(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := range height {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}

// SaveImage encodes img as BMP when path ends in ".bmp" and as PNG otherwise.
func SaveImage(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		err = bmp.Encode(file, img)
	} else {
		err = png.Encode(file, img)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return file.Close()
}
