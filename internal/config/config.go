// Package config handles terrain viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/pkg/terrain"
	"github.com/Faultbox/midgard-terrain/pkg/terrain/noise"
)

// Source kinds.
const (
	SourceResource = "resource"
	SourceNoise    = "noise"
)

// Config holds all settings.
type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	Source  SourceConfig  `yaml:"source"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Logging LoggingConfig `yaml:"logging"`
}

// TerrainConfig holds map and streaming grid settings.
type TerrainConfig struct {
	MapWidth  int                     `yaml:"map_width"`
	MapHeight int                     `yaml:"map_height"`
	ChunkSize int                     `yaml:"chunk_size"`
	LODs      []terrain.LevelOfDetail `yaml:"lods"`
	Colors    ColorConfig             `yaml:"colors"`
}

// ColorConfig holds vertex coloring thresholds.
type ColorConfig struct {
	SnowHeight float32 `yaml:"snow_height"`
	SandHeight float32 `yaml:"sand_height"`
	Borders    bool    `yaml:"borders"` // Paint chunk borders white
}

// SourceConfig selects where terrain samples come from.
type SourceConfig struct {
	Kind     string       `yaml:"kind"`      // "resource" or "noise"
	Path     string       `yaml:"path"`      // Local file, .zst file or s3://bucket/key
	S3Region string       `yaml:"s3_region"` // Region for s3:// paths
	Noise    noise.Config `yaml:"noise"`
}

// ViewerConfig holds display and camera settings.
type ViewerConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	Wireframe  bool    `yaml:"wireframe"`
	FOV        float32 `yaml:"fov"`        // Vertical field of view in degrees
	MoveSpeed  float32 `yaml:"move_speed"` // Units per second
	EyeHeight  float32 `yaml:"eye_height"` // Camera height above ground when following terrain
	FarPlane   float32 `yaml:"far_plane"`

	SunAzimuth   float32 `yaml:"sun_azimuth"`   // Degrees around the Y axis, 0 towards +Z
	SunElevation float32 `yaml:"sun_elevation"` // Degrees above the horizon

	ScreenshotDir    string `yaml:"screenshot_dir"`
	ScreenshotFormat string `yaml:"screenshot_format"` // "png" or "bmp"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	colors := terrain.DefaultColorPolicy()

	return &Config{
		Terrain: TerrainConfig{
			MapWidth:  1024,
			MapHeight: 1024,
			ChunkSize: 32,
			LODs: []terrain.LevelOfDetail{
				{SampleFrequency: 1, LayerCount: 2},
				{SampleFrequency: 2, LayerCount: 2},
				{SampleFrequency: 4, LayerCount: 2},
				{SampleFrequency: 8, LayerCount: 2},
			},
			Colors: ColorConfig{
				SnowHeight: colors.SnowHeight,
				SandHeight: colors.SandHeight,
			},
		},
		Source: SourceConfig{
			Kind:  SourceNoise,
			Noise: noise.DefaultConfig(),
		},
		Viewer: ViewerConfig{
			Width:     1280,
			Height:    720,
			VSync:     true,
			FOV:       60,
			MoveSpeed: 40,
			EyeHeight: 6,
			FarPlane:  2000,

			SunAzimuth:   215,
			SunElevation: 55,

			ScreenshotDir:    "screenshots",
			ScreenshotFormat: "png",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// MapSize returns the map extent in finest-LOD units.
func (t TerrainConfig) MapSize() image.Point {
	return image.Pt(t.MapWidth, t.MapHeight)
}

// StreamerConfig converts the settings to a terrain streamer configuration.
func (t TerrainConfig) StreamerConfig() terrain.Config {
	colors := terrain.DefaultColorPolicy()
	colors.SnowHeight = t.Colors.SnowHeight
	colors.SandHeight = t.Colors.SandHeight
	colors.Borders = t.Colors.Borders

	return terrain.Config{
		MapSize:   t.MapSize(),
		ChunkSize: t.ChunkSize,
		LODs:      t.LODs,
		Colors:    colors,
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Terrain.StreamerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Source.Kind {
	case SourceResource:
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for resource sources"))
		}
	case SourceNoise:
		switch c.Source.Noise.Algorithm {
		case noise.Perlin, noise.OpenSimplex:
		default:
			errs = append(errs, fmt.Errorf("%w: %q", noise.ErrUnknownAlgorithm, c.Source.Noise.Algorithm))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}

	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		errs = append(errs, fmt.Errorf("viewer size %dx%d must be positive", c.Viewer.Width, c.Viewer.Height))
	}
	switch c.Viewer.ScreenshotFormat {
	case "", "png", "bmp":
	default:
		errs = append(errs, fmt.Errorf("unknown screenshot format %q", c.Viewer.ScreenshotFormat))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
