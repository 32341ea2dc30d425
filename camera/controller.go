package camera

import "github.com/andewx/grayv"

// DefaultRollSpeed is the roll rate in degrees per second.
const DefaultRollSpeed = 60

// Input is one frame of sampled input. Axes are in [-1, 1]; Look is the
// cursor delta in pixels since the previous frame.
type Input struct {
	Forward float32
	Right   float32
	Up      float32
	Roll    float32
	LookX   float32
	LookY   float32
}

// Controller moves a camera from per-frame input.
type Controller struct {
	Camera    *Camera
	MoveSpeed float32 // units per second
	LookSpeed float32 // degrees per pixel
	RollSpeed float32 // degrees per second
}

func NewController(cam *Camera, cfg grayv.CameraConfig) *Controller {
	return &Controller{
		Camera:    cam,
		MoveSpeed: cfg.MoveSpeed,
		LookSpeed: cfg.LookSpeed,
		RollSpeed: DefaultRollSpeed,
	}
}

// Apply moves and turns the camera for a frame lasting dt seconds and
// recomputes its matrices. Moving the cursor right yaws right and moving it
// down pitches down.
func (c *Controller) Apply(in Input, dt float32) {
	cam := c.Camera
	step := c.MoveSpeed * dt
	if in.Forward != 0 {
		cam.MoveForward(in.Forward * step)
	}
	if in.Right != 0 {
		cam.MoveRight(in.Right * step)
	}
	if in.Up != 0 {
		cam.MoveUp(in.Up * step)
	}
	if in.LookX != 0 {
		cam.Yaw(-in.LookX * c.LookSpeed)
	}
	if in.LookY != 0 {
		cam.Pitch(-in.LookY * c.LookSpeed)
	}
	if in.Roll != 0 {
		cam.Roll(in.Roll * c.RollSpeed * dt)
	}
	cam.Update()
}
