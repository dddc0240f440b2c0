// Package viewer implements the interactive terrain fly-through loop.
package viewer

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/config"
	"github.com/Faultbox/midgard-terrain/internal/engine/camera"
	"github.com/Faultbox/midgard-terrain/internal/engine/debug"
	"github.com/Faultbox/midgard-terrain/internal/engine/input"
	"github.com/Faultbox/midgard-terrain/internal/engine/lighting"
	"github.com/Faultbox/midgard-terrain/internal/engine/renderer"
	"github.com/Faultbox/midgard-terrain/internal/engine/window"
	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/pkg/terrain"
)

const title = "Midgard Terrain"

// Viewer is the main viewer instance.
type Viewer struct {
	config   *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	host     *renderer.TerrainHost
	camera   *camera.FlyCamera
	streamer *terrain.Streamer
	lighting renderer.Lighting
	shots    *debug.Screenshots
	log      *zap.Logger

	follow   bool // Keep the camera above ground
	captured bool // Mouse captured for looking around
	capture  bool // Save the next frame
}

// New creates the window, GL resources and terrain streamer.
func New(cfg *config.Config, source terrain.Source) (*Viewer, error) {
	v := &Viewer{
		config:   cfg,
		input:    input.New(),
		host:     renderer.NewTerrainHost(),
		lighting: renderer.DefaultLighting(),
		shots:    debug.NewScreenshots(cfg.Viewer.ScreenshotDir, "terrain", cfg.Viewer.ScreenshotFormat),
		log:      logger.Named("viewer"),
		follow:   true,
	}

	v.log.Info("initializing viewer",
		zap.Int("width", cfg.Viewer.Width),
		zap.Int("height", cfg.Viewer.Height),
	)

	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.Size()
	v.renderer, err = renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		Wireframe:  cfg.Viewer.Wireframe,
		ClearColor: v.lighting.FogColor,
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	if err := v.host.Init(); err != nil {
		v.Close()
		return nil, err
	}

	v.streamer, err = terrain.NewStreamer(cfg.Terrain.StreamerConfig(), source, v.host,
		terrain.WithLogger(logger.Named("streamer")))
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create streamer: %w", err)
	}

	v.camera = camera.NewFlyCamera(mgl32.Vec3{0, cfg.Viewer.EyeHeight, 0})
	v.camera.FOV = cfg.Viewer.FOV
	v.camera.Far = cfg.Viewer.FarPlane
	v.camera.Speed = cfg.Viewer.MoveSpeed
	v.camera.MinHeight = cfg.Viewer.EyeHeight
	v.camera.SetViewport(width, height)
	v.lighting.FogFar = cfg.Viewer.FarPlane
	v.lighting.LightDir = lighting.SunDirection(cfg.Viewer.SunAzimuth, cfg.Viewer.SunElevation)
	v.streamer.Track(v.camera)

	v.log.Info("viewer initialized successfully")
	return v, nil
}

// Run starts the main loop and returns when the window is closed.
func (v *Viewer) Run() error {
	v.running = true

	if err := v.streamer.Attach(); err != nil {
		v.log.Warn("terrain attached with missing chunks", zap.Error(err))
	}
	v.camera.FollowGround(v.streamer.Height(v.camera.Position()))

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

		v.update(dt)
		v.render()
		if v.capture {
			v.capture = false
			v.screenshot()
		}
		v.window.SwapBuffers()

		frameCount++
		if elapsed := time.Since(fpsTimer); elapsed >= time.Second {
			v.window.SetTitle(v.status(float64(frameCount) / elapsed.Seconds()))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

// Close releases GL resources and the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.streamer != nil {
		v.streamer.Detach()
	}
	if v.host != nil {
		v.host.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			width, height := v.window.Size()
			v.renderer.Resize(width, height)
			v.camera.SetViewport(width, height)

		case input.EventMouseDown:
			if event.Button == sdl.BUTTON_LEFT && !v.captured {
				v.setCaptured(true)
			}

		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				if v.captured {
					v.setCaptured(false)
				} else {
					v.running = false
				}
			case sdl.SCANCODE_F1:
				v.renderer.SetWireframe(!v.renderer.Wireframe())
			case sdl.SCANCODE_F2:
				v.follow = !v.follow
				v.log.Info("ground following", zap.Bool("enabled", v.follow))
			case sdl.SCANCODE_F12:
				v.capture = true
			}
		}
	}
}

func (v *Viewer) screenshot() {
	pixels, width, height := v.renderer.ReadPixels()
	path, err := v.shots.Capture(pixels, width, height)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

func (v *Viewer) setCaptured(captured bool) {
	v.captured = captured
	v.window.CaptureMouse(captured)
}

// update moves the camera and advances the terrain grid.
func (v *Viewer) update(dt float32) {
	in := v.input
	if v.captured {
		v.camera.HandleLook(in.MouseDX, in.MouseDY)
	}
	if in.Wheel != 0 {
		v.camera.HandleZoom(in.Wheel)
	}

	v.camera.HandleMovement(
		in.Axis(sdl.SCANCODE_W, sdl.SCANCODE_S),
		in.Axis(sdl.SCANCODE_D, sdl.SCANCODE_A),
		in.Axis(sdl.SCANCODE_SPACE, sdl.SCANCODE_LCTRL),
		dt,
	)

	if err := v.streamer.Execute(); err != nil {
		v.log.Warn("terrain chunks unavailable", zap.Error(err))
	}

	if v.follow {
		v.camera.FollowGround(v.streamer.Height(v.camera.Position()))
	}
}

func (v *Viewer) render() {
	v.renderer.Begin()
	v.host.Draw(v.camera.ViewProjection(), v.camera.Position(), v.lighting)
	v.renderer.End()
}

// status formats the window title line.
func (v *Viewer) status(fps float64) string {
	stats := v.streamer.Stats()
	live, visible := v.host.MeshCount()
	eye := v.camera.Position()
	center := v.streamer.Center()

	return fmt.Sprintf("%s | %.0f fps | pos %.0f,%.0f,%.0f | chunk %d,%d | meshes %d/%d | regen %d failed %d",
		title, fps, eye.X(), eye.Y(), eye.Z(), center.X, center.Y,
		visible, live, stats.Regenerated, stats.Failed)
}
