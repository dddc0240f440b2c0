// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// FlyCamera is a free-flying first-person camera. Yaw 0 looks north (-Z).
type FlyCamera struct {
	Eye   mgl32.Vec3
	Yaw   float32 // Horizontal angle, radians, clockwise from north
	Pitch float32 // Vertical angle, radians, positive looks up

	// Constraints
	MaxPitch  float32
	MinHeight float32 // Minimum height above the ground when following terrain

	// Sensitivity
	Speed           float32 // Units per second
	LookSensitivity float32 // Radians per mouse pixel
	ZoomSensitivity float32 // Speed factor per wheel notch

	FOV, Near, Far float32 // Degrees and world units
	Aspect         float32
}

// NewFlyCamera creates a camera at eye with default settings.
func NewFlyCamera(eye mgl32.Vec3) *FlyCamera {
	return &FlyCamera{
		Eye:             eye,
		Pitch:           -0.3,
		MaxPitch:        1.5,
		MinHeight:       2,
		Speed:           40,
		LookSensitivity: 0.003,
		ZoomSensitivity: 0.1,
		FOV:             60,
		Near:            0.5,
		Far:             2000,
		Aspect:          16.0 / 9.0,
	}
}

// Position returns the eye position.
func (c *FlyCamera) Position() mgl32.Vec3 {
	return c.Eye
}

// Forward returns the unit view direction.
func (c *FlyCamera) Forward() mgl32.Vec3 {
	cp := math32.Cos(c.Pitch)
	return mgl32.Vec3{
		math32.Sin(c.Yaw) * cp,
		math32.Sin(c.Pitch),
		-math32.Cos(c.Yaw) * cp,
	}
}

// Right returns the unit direction to the right on the XZ plane.
func (c *FlyCamera) Right() mgl32.Vec3 {
	return mgl32.Vec3{math32.Cos(c.Yaw), 0, math32.Sin(c.Yaw)}
}

// HandleLook rotates the camera by a mouse delta in pixels.
func (c *FlyCamera) HandleLook(dx, dy float32) {
	c.Yaw += dx * c.LookSensitivity
	c.Pitch -= dy * c.LookSensitivity
	c.Pitch = mgl32.Clamp(c.Pitch, -c.MaxPitch, c.MaxPitch)
}

// HandleZoom scales the movement speed by wheel notches.
func (c *FlyCamera) HandleZoom(delta float32) {
	c.Speed *= 1 + delta*c.ZoomSensitivity
	c.Speed = mgl32.Clamp(c.Speed, 1, 5000)
}

// HandleMovement moves along the view direction, the right vector and world up,
// each scaled by its axis value in [-1, 1].
func (c *FlyCamera) HandleMovement(forward, right, up, dt float32) {
	step := c.Speed * dt
	move := c.Forward().Mul(forward).
		Add(c.Right().Mul(right)).
		Add(mgl32.Vec3{0, up, 0})
	if move.Len() > 1 {
		move = move.Normalize()
	}
	c.Eye = c.Eye.Add(move.Mul(step))
}

// FollowGround keeps the eye at least MinHeight above ground.
func (c *FlyCamera) FollowGround(ground float32) {
	if minY := ground + c.MinHeight; c.Eye.Y() < minY {
		c.Eye[1] = minY
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *FlyCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Eye.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

// ProjectionMatrix returns the perspective projection.
func (c *FlyCamera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view.
func (c *FlyCamera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

// SetViewport updates the aspect ratio from a viewport size.
func (c *FlyCamera) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}
