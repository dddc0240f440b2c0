package input

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"
)

func key(t uint32, code sdl.Scancode, repeat uint8) *sdl.KeyboardEvent {
	return &sdl.KeyboardEvent{Type: t, Repeat: repeat, Keysym: sdl.Keysym{Scancode: code}}
}

func TestInput_HeldKeys(t *testing.T) {
	in := New()
	w := sdl.Scancode(sdl.SCANCODE_W)
	s := sdl.Scancode(sdl.SCANCODE_S)

	in.handle(key(sdl.KEYDOWN, w, 0))
	if !in.IsKeyHeld(w) || !in.IsKeyPressed(w) {
		t.Fatal("expected W held and pressed")
	}
	if got := in.Axis(w, s); got != 1 {
		t.Errorf("expected axis 1, got %f", got)
	}

	// Held state survives the next frame, pressed does not.
	in.reset()
	in.handle(key(sdl.KEYDOWN, w, 1))
	if !in.IsKeyHeld(w) {
		t.Error("expected W still held")
	}
	if in.IsKeyPressed(w) {
		t.Error("key repeat should not count as a press")
	}

	in.handle(key(sdl.KEYDOWN, s, 0))
	if got := in.Axis(w, s); got != 0 {
		t.Errorf("expected opposing keys to cancel, got %f", got)
	}

	in.handle(key(sdl.KEYUP, w, 0))
	if in.IsKeyHeld(w) {
		t.Error("expected W released")
	}
	if got := in.Axis(w, s); got != -1 {
		t.Errorf("expected axis -1, got %f", got)
	}
}

func TestInput_MouseAccumulates(t *testing.T) {
	in := New()

	in.handle(&sdl.MouseMotionEvent{XRel: 3, YRel: -2})
	in.handle(&sdl.MouseMotionEvent{XRel: 4, YRel: 1})
	in.handle(&sdl.MouseWheelEvent{Y: 2})

	if in.MouseDX != 7 || in.MouseDY != -1 {
		t.Errorf("expected motion (7, -1), got (%f, %f)", in.MouseDX, in.MouseDY)
	}
	if in.Wheel != 2 {
		t.Errorf("expected wheel 2, got %f", in.Wheel)
	}

	in.reset()
	if in.MouseDX != 0 || in.MouseDY != 0 || in.Wheel != 0 {
		t.Error("expected reset to clear accumulated motion")
	}
}

func TestInput_QuitAndResize(t *testing.T) {
	in := New()

	if in.handle(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_RESIZED, Data1: 800, Data2: 600}) {
		t.Error("resize should not quit")
	}
	if !in.handle(&sdl.QuitEvent{}) {
		t.Error("expected quit")
	}

	events := in.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventWindowResize || events[0].Width != 800 || events[0].Height != 600 {
		t.Errorf("unexpected resize event %+v", events[0])
	}
	if events[1].Type != EventQuit {
		t.Errorf("expected quit event, got %+v", events[1])
	}
}
