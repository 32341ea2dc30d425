package main

import (
	"os"
	"time"

	"github.com/andewx/grayv"
	"github.com/andewx/grayv/camera"
	"github.com/andewx/grayv/vkdriver"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// openWindow initializes glfw and the Vulkan loader and creates a window
// without a client API. The returned func terminates glfw.
func openWindow(cfg grayv.WindowConfig, visible bool) (*glfw.Window, func(), error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "glfw init")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	if !visible {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}
	if err := vkdriver.Init(glfw.GetVulkanGetInstanceProcAddress()); err != nil {
		glfw.Terminate()
		return nil, nil, err
	}
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, errors.Wrap(err, "create window")
	}
	return window, func() {
		window.Destroy()
		glfw.Terminate()
	}, nil
}

// Run renders until the window closes or the quit key is pressed.
func Run(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	if dir := ctx.String("shaders"); dir != "" {
		cfg.Shaders.Dir = dir
	}
	if ctx.Bool("validation") {
		cfg.Renderer.Validation = true
	}
	if mode := ctx.String("present-mode"); mode != "" {
		cfg.Renderer.PresentMode = mode
	}
	keys, err := newBindings(cfg.Keys)
	if err != nil {
		return err
	}
	opts, err := grayv.OptionsFromConfig(cfg, os.DirFS(cfg.Shaders.Dir))
	if err != nil {
		return err
	}

	window, closeWindow, err := openWindow(cfg.Window, true)
	if err != nil {
		return err
	}
	defer closeWindow()

	r, err := grayv.NewRenderer(vkdriver.New(), window, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Destroy(); err != nil {
			logger.Errorf("teardown: %v", err)
		}
	}()

	var watcher *grayv.ShaderWatcher
	if cfg.Shaders.Watch {
		if watcher, err = grayv.NewShaderWatcher(cfg.Shaders.Dir, cfg.Shaders.Vertex, cfg.Shaders.Fragment); err != nil {
			logger.Warningf("shader watching disabled, press %s to reload: %v", cfg.Keys.Reload, err)
		} else {
			defer watcher.Close()
		}
	}

	cam := camera.FromConfig(cfg.Camera)
	ctl := camera.NewController(cam, cfg.Camera)
	loop := &renderLoop{r: r, window: window, keys: keys, ctl: ctl, watcher: watcher}
	loop.bind()

	logger.Noticef("rendering %s and %s from %s", cfg.Shaders.Vertex, cfg.Shaders.Fragment, cfg.Shaders.Dir)
	return loop.run()
}

type renderLoop struct {
	r       *grayv.Renderer
	window  *glfw.Window
	keys    bindings
	ctl     *camera.Controller
	watcher *grayv.ShaderWatcher

	reloadRequested bool
	looking         bool
	lastX, lastY    float64
	lookX, lookY    float64
}

// bind installs the key and mouse callbacks. Holding the left mouse button
// turns the camera.
func (l *renderLoop) bind() {
	l.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case l.keys.quit:
			w.SetShouldClose(true)
		case l.keys.reload:
			l.reloadRequested = true
		}
	})
	l.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		l.looking = action == glfw.Press
		if l.looking {
			l.lastX, l.lastY = w.GetCursorPos()
		}
	})
	l.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if !l.looking {
			return
		}
		l.lookX += x - l.lastX
		l.lookY += y - l.lastY
		l.lastX, l.lastY = x, y
	})
}

func (l *renderLoop) input() camera.Input {
	pressed := func(k glfw.Key) bool {
		return l.window.GetKey(k) == glfw.Press
	}
	in := camera.Input{
		Forward: axis(pressed, l.keys.forward, l.keys.backward),
		Right:   axis(pressed, l.keys.right, l.keys.left),
		Up:      axis(pressed, l.keys.up, l.keys.down),
		Roll:    axis(pressed, l.keys.rollRight, l.keys.rollLeft),
		LookX:   float32(l.lookX),
		LookY:   float32(l.lookY),
	}
	l.lookX, l.lookY = 0, 0
	return in
}

func (l *renderLoop) reload() {
	switch {
	case l.reloadRequested:
		l.reloadRequested = false
		l.r.ReloadModifiedShaders()
		if l.watcher != nil {
			l.watcher.TakeDirty()
		}
	case l.watcher != nil && l.watcher.Pending():
		l.r.ReloadShaders(l.watcher.TakeDirty())
	case l.watcher == nil:
		l.r.ReloadModifiedShaders()
	}
}

func (l *renderLoop) run() error {
	last := time.Now()
	for !l.window.ShouldClose() {
		glfw.PollEvents()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		l.reload()

		l.ctl.Apply(l.input(), dt)
		if sc := l.r.Swapchain().Current(); sc != nil {
			l.ctl.Camera.SetAspect(sc.Extent.Width, sc.Extent.Height)
		}
		l.r.SetConstants(l.ctl.Camera.Constants())

		if err := l.r.RenderFrame(); err != nil {
			if grayv.IsFatal(err) {
				return err
			}
			logger.Errorf("frame: %v", err)
		}
	}
	stats := l.r.Frames().Stats()
	logger.Noticef("presented %d frames, %d swapchain rebuilds, %d skipped", stats.Presented, stats.Rebuilds, l.r.Skipped())
	return nil
}
