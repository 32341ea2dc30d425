package vkdriver

import (
	"os"
	"os/exec"
	"runtime"
	"testing"

	"github.com/andewx/grayv"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	runtime.LockOSThread()
}

// TestRender opens a window and draws real frames. It needs a display, a
// Vulkan loader and glslc, so it only runs with GRAYV_VULKAN_TEST=1.
func TestRender(t *testing.T) {
	if os.Getenv("GRAYV_VULKAN_TEST") == "" {
		t.Skip("set GRAYV_VULKAN_TEST=1 to run against a real GPU")
	}
	if _, err := exec.LookPath("glslc"); err != nil {
		t.Skip("glslc not installed")
	}

	require.NoError(t, glfw.Init())
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	require.NoError(t, Init(glfw.GetVulkanGetInstanceProcAddress()))

	window, err := glfw.CreateWindow(500, 500, "grayv test", nil, nil)
	require.NoError(t, err)
	defer window.Destroy()

	cfg := grayv.DefaultConfig()
	cfg.Renderer.Validation = true
	opts, err := grayv.OptionsFromConfig(cfg, os.DirFS("../shaders"))
	require.NoError(t, err)

	drv := New()
	r, err := grayv.NewRenderer(drv, window, opts)
	require.NoError(t, err)

	for i := 0; i < 60 && !window.ShouldClose(); i++ {
		require.NoError(t, r.RenderFrame())
		glfw.PollEvents()
	}
	assert.Equal(t, uint64(60), r.Frames().Stats().Presented+r.Skipped())

	require.NoError(t, r.Destroy())
	assert.Zero(t, drv.Live())
}
