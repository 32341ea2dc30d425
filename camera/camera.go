// Package camera holds the free-flying camera that feeds the screen pass
// push constants, and the controller turning input deltas into motion.
package camera

import (
	"math"

	"github.com/andewx/grayv"
	lin "github.com/xlab/linmath"
)

const (
	DefaultFOV  = 70
	DefaultNear = 0.01
	DefaultFar  = 1000
)

// Camera is a right-handed camera looking down Dir with Up as its roll
// reference. Dir and Up are kept unit length and orthogonal.
type Camera struct {
	Pos lin.Vec3
	Dir lin.Vec3
	Up  lin.Vec3

	FOV    float32 // vertical, degrees
	Near   float32
	Far    float32
	Aspect float32

	View       lin.Mat4x4
	Projection lin.Mat4x4
}

func New() *Camera {
	c := &Camera{
		Dir:    lin.Vec3{0, 0, -1},
		Up:     lin.Vec3{0, 1, 0},
		FOV:    DefaultFOV,
		Near:   DefaultNear,
		Far:    DefaultFar,
		Aspect: 1,
	}
	c.Update()
	return c
}

// FromConfig places a camera with the configured lens and position.
func FromConfig(cfg grayv.CameraConfig) *Camera {
	c := New()
	c.Pos = lin.Vec3(cfg.Position)
	if cfg.FOV > 0 {
		c.FOV = cfg.FOV
	}
	if cfg.Near > 0 {
		c.Near = cfg.Near
	}
	if cfg.Far > c.Near {
		c.Far = cfg.Far
	}
	c.Update()
	return c
}

// Right is the unit vector Dir x Up.
func (c *Camera) Right() lin.Vec3 {
	var r lin.Vec3
	r.MultCross(&c.Dir, &c.Up)
	r.Norm(&r)
	return r
}

func (c *Camera) move(axis lin.Vec3, d float32) {
	axis.Scale(&axis, d)
	c.Pos.Add(&c.Pos, &axis)
}

func (c *Camera) MoveForward(d float32) { c.move(c.Dir, d) }
func (c *Camera) MoveBack(d float32)    { c.move(c.Dir, -d) }
func (c *Camera) MoveRight(d float32)   { c.move(c.Right(), d) }
func (c *Camera) MoveLeft(d float32)    { c.move(c.Right(), -d) }
func (c *Camera) MoveUp(d float32)      { c.move(c.Up, d) }
func (c *Camera) MoveDown(d float32)    { c.move(c.Up, -d) }

// Yaw turns left for positive degrees.
func (c *Camera) Yaw(deg float32) {
	c.Dir = rotate(c.Dir, c.Up, deg)
	c.orthonormalize()
}

// Pitch tilts up for positive degrees.
func (c *Camera) Pitch(deg float32) {
	right := c.Right()
	c.Dir = rotate(c.Dir, right, deg)
	c.Up = rotate(c.Up, right, deg)
	c.orthonormalize()
}

// Roll banks clockwise, as seen from behind the camera, for positive degrees.
func (c *Camera) Roll(deg float32) {
	c.Up = rotate(c.Up, c.Dir, deg)
	c.orthonormalize()
}

func (c *Camera) orthonormalize() {
	c.Dir.Norm(&c.Dir)
	right := c.Right()
	c.Up.MultCross(&right, &c.Dir)
	c.Up.Norm(&c.Up)
}

// SetAspect sets width/height of the target. A zero height is ignored.
func (c *Camera) SetAspect(width, height uint32) {
	if height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

// Update recomputes View and the Vulkan Projection.
func (c *Camera) Update() {
	var center lin.Vec3
	center.Add(&c.Pos, &c.Dir)
	c.View.LookAt(&c.Pos, &center, &c.Up)
	Perspective(&c.Projection, c.FOV, c.Aspect, c.Near, c.Far)
}

// Constants fills the camera part of the screen pass push constants.
func (c *Camera) Constants() grayv.FrameConstants {
	return grayv.FrameConstants{
		Position:  [3]float32(c.Pos),
		Direction: [3]float32(c.Dir),
		Up:        [3]float32(c.Up),
		FOV:       radians(c.FOV),
		Aspect:    c.Aspect,
	}
}

func radians(deg float32) float32 {
	return deg * math.Pi / 180
}

func dot(a, b lin.Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// rotate turns v about the unit axis k by deg degrees, counter-clockwise
// when looking against k.
func rotate(v, k lin.Vec3, deg float32) lin.Vec3 {
	rad := float64(radians(deg))
	cos, sin := float32(math.Cos(rad)), float32(math.Sin(rad))

	var out, cross, along lin.Vec3
	out.Scale(&v, cos)
	cross.MultCross(&k, &v)
	cross.Scale(&cross, sin)
	along.Scale(&k, dot(k, v)*(1-cos))
	out.Add(&out, &cross)
	out.Add(&out, &along)
	return out
}
