package camera

import lin "github.com/xlab/linmath"

// vulkanClip maps GL clip space onto Vulkan clip space: Y points down and
// depth runs over [0, 1] instead of [-1, 1].
var vulkanClip = lin.Mat4x4{
	{1, 0, 0, 0},
	{0, -1, 0, 0},
	{0, 0, 0.5, 0},
	{0, 0, 0.5, 1},
}

// VulkanProjectionMat converts the GL style projection proj produced by
// linmath into a Vulkan style projection stored in m.
func VulkanProjectionMat(m *lin.Mat4x4, proj *lin.Mat4x4) {
	m.Mult(&vulkanClip, proj)
}

// Perspective builds a Vulkan projection. fov is the vertical field of view
// in degrees.
func Perspective(m *lin.Mat4x4, fov, aspect, near, far float32) {
	var gl lin.Mat4x4
	gl.Perspective(radians(fov), aspect, near, far)
	VulkanProjectionMat(m, &gl)
}
