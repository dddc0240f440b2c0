// terraintool is a CLI utility for inspecting terrain resources and sources.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	jsoniter "github.com/json-iterator/go"

	"github.com/Faultbox/midgard-terrain/internal/config"
	"github.com/Faultbox/midgard-terrain/internal/engine/debug"
	"github.com/Faultbox/midgard-terrain/internal/engine/lighting"
	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/internal/source"
	"github.com/Faultbox/midgard-terrain/pkg/terrain"
	"github.com/Faultbox/midgard-terrain/pkg/terrainfile"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "info":
		return cmdInfo(args, out)
	case "sample":
		return cmdSample(args, out)
	case "height":
		return cmdHeight(args, out)
	case "walk":
		return cmdWalk(args, out)
	case "preview":
		return cmdPreview(args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `terraintool - terrain resource utility

Usage:
  terraintool <command> [options]

Commands:
  info                          Show the resource layout and streaming grid
  sample <x> <z> <w> <h>        Print an LOD-local height section
  height <x> <z>                Print the streamed terrain height at a world position
  walk <x0> <z0> <x1> <z1>      Stream along a line and print grid statistics
  preview -o <file>             Render one LOD as a shaded color map (.png or .bmp)

Common options:
  -config <file>                Terrain config (defaults when omitted)
  -json                         Machine-readable output

Examples:
  terraintool info -config terrain.yaml -json
  terraintool sample -lod 2 -- -8 -8 16 16
  terraintool height -resource s3://maps/world.terrain 120.5 -33
  terraintool preview -lod 1 -o world.png`)
}

// common holds the options every command accepts.
type common struct {
	configPath string
	resource   string
	debug      bool
	json       bool
}

func newFlagSet(name string, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.configPath, "config", "", "Path to config file")
	fs.StringVar(&c.resource, "resource", "", "Read samples from a resource instead of the configured source")
	fs.BoolVar(&c.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&c.json, "json", false, "Print JSON")
	return fs
}

// load reads and validates the configuration and sets up logging.
func (c *common) load() (*config.Config, error) {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.resource != "" {
		cfg.Source.Kind = config.SourceResource
		cfg.Source.Path = c.resource
	}
	if c.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Console logs share stdout with command output, so they need -debug.
	opts := logger.Options{Level: cfg.Logging.Level, Console: c.debug}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.Setup(opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *common) print(out io.Writer, v any, text func() string) error {
	if c.json {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprint(out, text())
	return err
}

func parseFloats(args []string, n int, usage string) ([]float32, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: %s", errUsage, usage)
	}
	out := make([]float32, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", errUsage, a)
		}
		out[i] = float32(v)
	}
	return out, nil
}

type blockInfo struct {
	Frequency    int    `json:"frequency"`
	Samples      [2]int `json:"samples"`
	HeightOffset int64  `json:"heightOffset"`
	NormalOffset int64  `json:"normalOffset"`
	LayerCount   int    `json:"layerCount"`
}

type infoOutput struct {
	MapSize   [2]int      `json:"mapSize"`
	ChunkSize int         `json:"chunkSize"`
	Bytes     int64       `json:"bytes"`
	Radius    int         `json:"radius"`
	GridSize  int         `json:"gridSize"`
	RingLODs  []int       `json:"ringLods"`
	Blocks    []blockInfo `json:"blocks"`
}

func cmdInfo(args []string, out io.Writer) error {
	var c common
	fs := newFlagSet("info", &c)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	cfg, err := c.load()
	if err != nil {
		return err
	}

	layout, err := terrainfile.NewLayout(cfg.Terrain.MapSize(), terrain.Frequencies(cfg.Terrain.LODs))
	if err != nil {
		return err
	}
	rings := terrain.BuildLayerMap(cfg.Terrain.LODs)

	info := infoOutput{
		MapSize:   [2]int{layout.MapSize.X, layout.MapSize.Y},
		ChunkSize: cfg.Terrain.ChunkSize,
		Bytes:     layout.Size(),
		Radius:    len(rings) - 1,
		GridSize:  2*len(rings) - 1,
		RingLODs:  rings,
	}
	for i, b := range layout.Blocks {
		s := b.Samples()
		info.Blocks = append(info.Blocks, blockInfo{
			Frequency:    b.Frequency,
			Samples:      [2]int{s.X, s.Y},
			HeightOffset: b.HeightOffset,
			NormalOffset: b.NormalOffset,
			LayerCount:   cfg.Terrain.LODs[i].LayerCount,
		})
	}

	return c.print(out, info, func() string {
		text := fmt.Sprintf("Map:     %dx%d\nChunk:   %d\nGrid:    %dx%d (radius %d)\nBytes:   %d\n\nLevels of detail:\n",
			info.MapSize[0], info.MapSize[1], info.ChunkSize, info.GridSize, info.GridSize, info.Radius, info.Bytes)
		for i, b := range info.Blocks {
			text += fmt.Sprintf("  %d  frequency %-3d layers %-3d samples %dx%d  heights @%d  normals @%d\n",
				i, b.Frequency, b.LayerCount, b.Samples[0], b.Samples[1], b.HeightOffset, b.NormalOffset)
		}
		return text
	})
}

func cmdSample(args []string, out io.Writer) error {
	var c common
	fs := newFlagSet("sample", &c)
	lod := fs.Int("lod", 0, "Level of detail index")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	const usage = "terraintool sample [-lod n] <x> <z> <w> <h>"
	if fs.NArg() != 4 {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			return fmt.Errorf("%w: %s", errUsage, usage)
		}
		v[i] = n
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	src, err := source.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	heights, err := src.SectionHeights(image.Pt(v[0], v[1]), image.Pt(v[2], v[3]), *lod)
	if err != nil {
		return err
	}

	cols := v[2] + 1
	rows := make([][]float32, 0, v[3]+1)
	for r := range v[3] + 1 {
		rows = append(rows, heights[r*cols:(r+1)*cols])
	}
	return c.print(out, rows, func() string {
		var text string
		for _, row := range rows {
			for i, h := range row {
				if i > 0 {
					text += " "
				}
				text += strconv.FormatFloat(float64(h), 'f', 2, 32)
			}
			text += "\n"
		}
		return text
	})
}

// attach streams the grid around pos into memory.
func attach(cfg *config.Config, src terrain.Source, pos mgl32.Vec3) (*terrain.Streamer, *terrain.MemoryHost, error) {
	host := terrain.NewMemoryHost()
	s, err := terrain.NewStreamer(cfg.Terrain.StreamerConfig(), src, host,
		terrain.WithLogger(logger.Named("streamer")))
	if err != nil {
		return nil, nil, err
	}
	s.SetTarget(pos)
	return s, host, s.Attach()
}

func cmdHeight(args []string, out io.Writer) error {
	var c common
	fs := newFlagSet("height", &c)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	xz, err := parseFloats(fs.Args(), 2, "terraintool height <x> <z>")
	if err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	src, err := source.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	pos := mgl32.Vec3{xz[0], 0, xz[1]}
	s, _, err := attach(cfg, src, pos)
	if err != nil {
		return err
	}
	defer s.Detach()

	center := s.Center()
	result := struct {
		X      float32 `json:"x"`
		Z      float32 `json:"z"`
		Height float32 `json:"height"`
		Chunk  [2]int  `json:"chunk"`
	}{xz[0], xz[1], s.Height(pos), [2]int{center.X, center.Y}}
	return c.print(out, result, func() string {
		return fmt.Sprintf("%.3f\n", result.Height)
	})
}

func cmdWalk(args []string, out io.Writer) error {
	var c common
	fs := newFlagSet("walk", &c)
	steps := fs.Int("steps", 64, "Number of positions along the line")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	v, err := parseFloats(fs.Args(), 4, "terraintool walk [-steps n] <x0> <z0> <x1> <z1>")
	if err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("%w: steps must be positive", errUsage)
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	src, err := source.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	from := mgl32.Vec3{v[0], 0, v[1]}
	to := mgl32.Vec3{v[2], 0, v[3]}
	s, host, err := attach(cfg, src, from)
	if err != nil {
		return err
	}
	defer s.Detach()

	var errs []error
	for i := 1; i <= *steps; i++ {
		s.SetTarget(from.Add(to.Sub(from).Mul(float32(i) / float32(*steps))))
		if err := s.Execute(); err != nil {
			errs = append(errs, err)
		}
	}

	stats := s.Stats()
	result := struct {
		terrain.Stats
		Meshes  int `json:"meshes"`
		Visible int `json:"visible"`
		Created int `json:"created"`
	}{stats, len(host.Live()), host.VisibleCount(), host.Created}

	if err := c.print(out, result, func() string {
		return fmt.Sprintf("Ticks:       %d\nMoves:       %d\nRegenerated: %d\nRefreshed:   %d\nFailed:      %d\nHidden:      %d\nMeshes:      %d (%d visible, %d created)\n",
			stats.Ticks, stats.Moves, stats.Regenerated, stats.Refreshed, stats.Failed, stats.Hidden,
			result.Meshes, result.Visible, result.Created)
	}); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func cmdPreview(args []string, out io.Writer) error {
	var c common
	fs := newFlagSet("preview", &c)
	lod := fs.Int("lod", 0, "Level of detail index")
	output := fs.String("o", "terrain.png", "Output image (.png or .bmp)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%w: terraintool preview [-lod n] [-o file]", errUsage)
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	if *lod < 0 || *lod >= len(cfg.Terrain.LODs) {
		return fmt.Errorf("%w: lod %d outside [0, %d)", errUsage, *lod, len(cfg.Terrain.LODs))
	}
	src, err := source.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	// The whole level, centered on the map origin.
	size := cfg.Terrain.MapSize().Div(cfg.Terrain.LODs[*lod].SampleFrequency)
	nw := size.Div(2).Mul(-1)
	heights, err := src.SectionHeights(nw, size, *lod)
	if err != nil {
		return err
	}
	normals, err := src.SectionNormals(nw, size, *lod)
	if err != nil {
		return err
	}

	streamer := cfg.Terrain.StreamerConfig()
	sun := lighting.SunDirection(cfg.Viewer.SunAzimuth, cfg.Viewer.SunElevation)
	img := debug.Heightmap(size.Add(image.Pt(1, 1)), heights, normals, streamer.Colors, sun)
	if err := debug.SaveImage(*output, img); err != nil {
		return err
	}

	result := struct {
		Path   string `json:"path"`
		LOD    int    `json:"lod"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}{*output, *lod, img.Bounds().Dx(), img.Bounds().Dy()}
	return c.print(out, result, func() string {
		return fmt.Sprintf("Wrote %s (%dx%d)\n", result.Path, result.Width, result.Height)
	})
}
