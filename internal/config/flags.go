package config

import (
	"flag"

	"github.com/Faultbox/midgard-terrain/pkg/terrain/noise"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagResource   = flag.String("resource", "", "Terrain resource (file, .zst or s3://bucket/key)")
	flagNoise      = flag.String("noise", "", "Generate terrain with a noise algorithm (perlin, opensimplex)")
	flagSeed       = flag.Int64("seed", 0, "Noise seed")
	flagChunkSize  = flag.Int("chunk-size", 0, "Chunk edge in map units")
	flagBorders    = flag.Bool("borders", false, "Paint chunk borders")
	flagWireframe  = flag.Bool("wireframe", false, "Render in wireframe")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagResource != "" {
		cfg.Source.Kind = SourceResource
		cfg.Source.Path = *flagResource
	}
	if *flagNoise != "" {
		cfg.Source.Kind = SourceNoise
		cfg.Source.Noise.Algorithm = noise.Algorithm(*flagNoise)
	}
	if *flagSeed != 0 {
		cfg.Source.Noise.Seed = *flagSeed
	}
	if *flagChunkSize > 0 {
		cfg.Terrain.ChunkSize = *flagChunkSize
	}
	if *flagBorders {
		cfg.Terrain.Colors.Borders = true
	}
	if *flagWireframe {
		cfg.Viewer.Wireframe = true
	}
	if *flagFullscreen {
		cfg.Viewer.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
}
