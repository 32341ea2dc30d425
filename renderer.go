package grayv

import (
	"io/fs"
	"time"

	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

// RendererOptions configure NewRenderer.
type RendererOptions struct {
	App            AppInfo
	PresentMode    PresentMode
	FramesInFlight int
	MaxRebuilds    int
	ClearColor     [4]float32

	ShaderFS  fs.FS
	Vertex    string
	Fragment  string
	Compilers Compilers
}

// OptionsFromConfig maps a Config onto renderer options reading shaders from fsys.
func OptionsFromConfig(cfg Config, fsys fs.FS) (RendererOptions, error) {
	mode, err := ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return RendererOptions{}, err
	}
	compilers, err := cfg.Compilers()
	if err != nil {
		return RendererOptions{}, err
	}
	return RendererOptions{
		App:            cfg.AppInfo(),
		PresentMode:    mode,
		FramesInFlight: cfg.Renderer.FramesInFlight,
		MaxRebuilds:    cfg.Renderer.MaxRebuilds,
		ClearColor:     cfg.Renderer.ClearColor,
		ShaderFS:       fsys,
		Vertex:         cfg.Shaders.Vertex,
		Fragment:       cfg.Shaders.Fragment,
		Compilers:      compilers,
	}, nil
}

// Renderer builds and owns the session, swapchain, shaders, screen pass and
// frame scheduler, and tears them down children first.
type Renderer struct {
	session   *Session
	swapchain *SwapchainManager
	vertex    *ShaderUnit
	fragment  *ShaderUnit
	pass      *ScreenPass
	frames    *FrameScheduler

	root    *Owner
	shaders *Owner

	constants FrameConstants
	start     time.Time
	skipped   uint64
	logger    log.Logger
	destroyed bool
}

func NewRenderer(drv Driver, provider SurfaceProvider, opts RendererOptions) (_ *Renderer, err error) {
	r := &Renderer{
		start:  time.Now(),
		logger: log.New("renderer"),
	}

	if r.session, err = NewSession(drv, provider, opts.App); err != nil {
		return nil, err
	}
	r.root = NewOwner("session", r.session.Destroy)
	// Shaders hang off the session ahead of the swapchain so they are
	// destroyed after the whole swapchain subtree.
	r.shaders = r.root.Own(NewOwner("shaders", nil))
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	w, h := provider.GetFramebufferSize()
	desired := Extent2D{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))}
	if r.swapchain, err = NewSwapchainManager(r.session, desired, opts.PresentMode); err != nil {
		return nil, err
	}
	scNode := r.root.Own(NewOwner("swapchain", nilErr(r.swapchain.Destroy)))

	if r.vertex, err = LoadShader(r.session, opts.ShaderFS, opts.Vertex, opts.Compilers); err != nil {
		return nil, err
	}
	r.shaders.Own(NewOwner("shader:"+opts.Vertex, nilErr(r.vertex.Destroy)))
	if r.fragment, err = LoadShader(r.session, opts.ShaderFS, opts.Fragment, opts.Compilers); err != nil {
		return nil, err
	}
	r.shaders.Own(NewOwner("shader:"+opts.Fragment, nilErr(r.fragment.Destroy)))

	if r.pass, err = NewScreenPass(r.session, r.swapchain.Current(), r.vertex, r.fragment); err != nil {
		return nil, err
	}
	r.pass.SetClearColor(opts.ClearColor)
	r.swapchain.AddListener(r.pass)
	passNode := scNode.Own(NewOwner("screenpass", nilErr(r.pass.Destroy)))

	if r.frames, err = NewFrameScheduler(r.session, r.swapchain, opts.FramesInFlight); err != nil {
		return nil, err
	}
	if opts.MaxRebuilds > 0 {
		r.frames.SetMaxRebuilds(opts.MaxRebuilds)
	}
	passNode.Own(NewOwner("frames", nilErr(r.frames.Destroy)))

	r.logger.Noticef("renderer ready: %s, %d frames in flight", r.swapchain.Current().Extent, r.frames.FramesInFlight())
	return r, nil
}

func nilErr(fn func()) func() error {
	return func() error {
		fn()
		return nil
	}
}

// TeardownOrder lists the components in the order Destroy releases them.
func (r *Renderer) TeardownOrder() []string {
	if r.root == nil {
		return nil
	}
	return r.root.Order()
}

// Destroy waits for the device to go idle and releases everything,
// children before parents.
func (r *Renderer) Destroy() error {
	if r.destroyed || r.root == nil {
		return nil
	}
	if err := r.session.WaitIdle(); err != nil {
		r.logger.Warningf("wait idle before teardown: %v", err)
	}
	r.destroyed = true
	return r.root.Teardown()
}

// SetConstants sets camera values for the next frames. Time and aspect are
// filled in by RenderFrame.
func (r *Renderer) SetConstants(c FrameConstants) {
	r.constants = c
}

// RenderFrame draws one frame. A zero-sized framebuffer skips the frame
// without touching GPU state.
func (r *Renderer) RenderFrame() error {
	if r.destroyed {
		return ErrDestroyed
	}
	if w, h := r.session.Provider().GetFramebufferSize(); w <= 0 || h <= 0 {
		r.skipped++
		return nil
	}
	c := r.constants
	c.Time = float32(time.Since(r.start).Seconds())
	if sc := r.swapchain.Current(); sc != nil && sc.Extent.Height > 0 {
		c.Aspect = float32(sc.Extent.Width) / float32(sc.Extent.Height)
	}
	r.pass.SetConstants(c)

	err := r.frames.DrawFrame(r.pass)
	if errors.Is(err, ErrZeroExtent) {
		r.skipped++
		return nil
	}
	return err
}

// ReloadModifiedShaders polls every shader unit and rebuilds the pipeline
// when one changed. Failures are logged by the units and never interrupt
// rendering. It reports whether a new pipeline is bound.
func (r *Renderer) ReloadModifiedShaders() bool {
	return r.reload(r.Units())
}

// ReloadShaders reloads the units whose paths are in names.
func (r *Renderer) ReloadShaders(names []string) bool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var units []*ShaderUnit
	for _, u := range r.Units() {
		if want[u.Path()] {
			units = append(units, u)
		}
	}
	return r.reload(units)
}

func (r *Renderer) reload(units []*ShaderUnit) bool {
	if r.destroyed {
		return false
	}
	changed := false
	for _, u := range units {
		status, _ := u.Reload()
		if status == Changed {
			changed = true
		}
	}
	if !changed {
		return false
	}
	if err := r.frames.WaitAll(); err != nil {
		r.logger.Errorf("wait frames before pipeline rebuild: %v", err)
		return false
	}
	if err := r.pass.RebuildPipeline(); err != nil {
		return false
	}
	r.logger.Notice("pipeline rebuilt with reloaded shaders")
	return true
}

func (r *Renderer) Units() []*ShaderUnit {
	return []*ShaderUnit{r.vertex, r.fragment}
}

func (r *Renderer) Session() *Session { return r.session }
func (r *Renderer) Swapchain() *SwapchainManager { return r.swapchain }
func (r *Renderer) Frames() *FrameScheduler { return r.frames }
func (r *Renderer) ScreenPass() *ScreenPass { return r.pass }

// Skipped counts frames skipped because the surface had no area.
func (r *Renderer) Skipped() uint64 { return r.skipped }
