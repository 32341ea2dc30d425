package grayv

import (
	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

// Swapchain is one generation of the presentable image chain. Images belong
// to the platform; views are owned here, one per image.
type Swapchain struct {
	Handle      SwapchainHandle
	Images      []Image
	Views       []ImageView
	Format      SurfaceFormat
	Extent      Extent2D
	PresentMode PresentMode
	Generation  uint64
}

// FrameWaiter blocks until no in-flight frame references the current chain.
type FrameWaiter interface {
	WaitAll() error
}

// SwapchainListener is told about chain replacement. SwapchainReleasing runs
// after all frames are idle and before the old views are destroyed.
type SwapchainListener interface {
	SwapchainReleasing(old *Swapchain)
	SwapchainRebuilt(sc *Swapchain) error
}

type SwapchainManager struct {
	session *Session
	logger  log.Logger

	current   *Swapchain
	desired   Extent2D
	preferred PresentMode

	waiter    FrameWaiter
	listeners []SwapchainListener

	generation uint64
	rebuilds   int
	destroyed  bool
}

// NewSwapchainManager builds the first chain for the session surface.
func NewSwapchainManager(session *Session, desired Extent2D, preferred PresentMode) (*SwapchainManager, error) {
	m := &SwapchainManager{
		session:   session,
		logger:    log.New("swapchain"),
		desired:   desired,
		preferred: preferred,
	}
	if err := m.Build(desired); err != nil {
		return nil, err
	}
	session.acquire()
	return m, nil
}

// SetWaiter installs the frame scheduler that must drain before a rebuild.
func (m *SwapchainManager) SetWaiter(w FrameWaiter) {
	m.waiter = w
}

func (m *SwapchainManager) AddListener(l SwapchainListener) {
	m.listeners = append(m.listeners, l)
}

func (m *SwapchainManager) Current() *Swapchain { return m.current }

// Generation counts successful builds.
func (m *SwapchainManager) Generation() uint64 { return m.generation }

// Rebuilds counts rebuilds that replaced an existing chain.
func (m *SwapchainManager) Rebuilds() int { return m.rebuilds }

type swapchainPlan struct {
	info  SwapchainInfo
	count uint32
}

func (m *SwapchainManager) plan(desired Extent2D) (*swapchainPlan, error) {
	details, err := m.session.SurfaceDetails()
	if err != nil {
		return nil, errors.Wrap(ErrSwapchainCreationFailed, err.Error())
	}
	if len(details.Formats) == 0 || len(details.PresentModes) == 0 {
		return nil, errors.Wrap(ErrSwapchainCreationFailed, "surface reports no formats or present modes")
	}
	caps := details.Capabilities
	extent := chooseExtent(caps, desired)
	if extent.IsZero() {
		return nil, ErrZeroExtent
	}
	sharing, families := m.session.queues.sharing()
	count := chooseImageCount(caps)
	return &swapchainPlan{
		count: count,
		info: SwapchainInfo{
			Surface:        m.session.Surface(),
			MinImageCount:  count,
			Format:         chooseSurfaceFormat(details.Formats),
			Extent:         extent,
			SharingMode:    sharing,
			QueueFamilies:  families,
			PreTransform:   chooseTransform(caps),
			CompositeAlpha: chooseCompositeAlpha(caps),
			PresentMode:    choosePresentMode(details.PresentModes, m.preferred),
		},
	}, nil
}

// Build creates a chain when none exists.
func (m *SwapchainManager) Build(desired Extent2D) error {
	if m.destroyed {
		return ErrDestroyed
	}
	if m.current != nil {
		return m.RebuildExtent(desired)
	}
	p, err := m.plan(desired)
	if err != nil {
		return err
	}
	m.desired = desired
	sc, err := m.create(p)
	if err != nil {
		return err
	}
	m.current = sc
	return m.notifyRebuilt(sc)
}

// Rebuild recreates the chain at the framebuffer size of the surface
// provider, or at the last requested extent when there is none.
func (m *SwapchainManager) Rebuild() error {
	desired := m.desired
	if pr := m.session.Provider(); pr != nil {
		w, h := pr.GetFramebufferSize()
		desired = Extent2D{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))}
	}
	return m.RebuildExtent(desired)
}

// RebuildExtent drains in-flight frames and the device, then replaces the
// chain. The old views and chain are destroyed only after the drain.
func (m *SwapchainManager) RebuildExtent(desired Extent2D) error {
	if m.destroyed {
		return ErrDestroyed
	}
	p, err := m.plan(desired)
	if err != nil {
		return err
	}
	m.desired = desired

	if m.waiter != nil {
		if err := m.waiter.WaitAll(); err != nil {
			return errors.Wrap(err, "wait frames before rebuild")
		}
	}
	if err := m.session.WaitIdle(); err != nil {
		return err
	}

	old := m.current
	if old != nil {
		for _, l := range m.listeners {
			l.SwapchainReleasing(old)
		}
		p.info.OldSwapchain = old.Handle
	}
	sc, err := m.create(p)
	if old != nil {
		m.destroyChain(old)
		m.rebuilds++
	}
	m.current = sc
	if err != nil {
		return err
	}
	m.logger.Infof("rebuilt swapchain generation %d at %s", sc.Generation, sc.Extent)
	return m.notifyRebuilt(sc)
}

func (m *SwapchainManager) notifyRebuilt(sc *Swapchain) error {
	for _, l := range m.listeners {
		if err := l.SwapchainRebuilt(sc); err != nil {
			return err
		}
	}
	return nil
}

func (m *SwapchainManager) create(p *swapchainPlan) (*Swapchain, error) {
	drv := m.session.Driver()
	dev := m.session.Device()

	handle, err := drv.CreateSwapchain(dev, p.info)
	if err != nil {
		return nil, errors.Wrapf(ErrSwapchainCreationFailed, "%v", err)
	}
	sc := &Swapchain{
		Handle:      handle,
		Format:      p.info.Format,
		Extent:      p.info.Extent,
		PresentMode: p.info.PresentMode,
	}
	sc.Images, err = drv.SwapchainImages(dev, handle)
	if err != nil {
		m.destroyChain(sc)
		return nil, errors.Wrapf(ErrSwapchainCreationFailed, "images: %v", err)
	}
	sc.Views = make([]ImageView, 0, len(sc.Images))
	for _, img := range sc.Images {
		view, err := drv.CreateImageView(dev, img, sc.Format.Format)
		if err != nil {
			m.destroyChain(sc)
			return nil, errors.Wrapf(ErrSwapchainCreationFailed, "image view: %v", err)
		}
		sc.Views = append(sc.Views, view)
	}
	m.generation++
	sc.Generation = m.generation
	m.logger.Debugf("swapchain %s, %d images, format %d, %s", sc.Extent, len(sc.Images), sc.Format.Format, sc.PresentMode)
	return sc, nil
}

func (m *SwapchainManager) destroyChain(sc *Swapchain) {
	drv := m.session.Driver()
	dev := m.session.Device()
	for _, v := range sc.Views {
		drv.DestroyImageView(dev, v)
	}
	sc.Views = nil
	if sc.Handle != 0 {
		drv.DestroySwapchain(dev, sc.Handle)
		sc.Handle = 0
	}
}

// Destroy releases the views and the chain. The caller must have waited for
// the device to go idle.
func (m *SwapchainManager) Destroy() {
	if m.destroyed {
		return
	}
	if m.current != nil {
		m.destroyChain(m.current)
		m.current = nil
	}
	m.destroyed = true
	m.session.releaseDependent()
}

// chooseSurfaceFormat prefers 8-bit BGRA in the sRGB nonlinear color space and
// falls back to the first reported format.
func chooseSurfaceFormat(formats []SurfaceFormat) SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == FormatUndefined {
		return SurfaceFormat{Format: FormatB8G8R8A8Srgb, ColorSpace: ColorSpaceSrgbNonlinear}
	}
	for _, want := range []Format{FormatB8G8R8A8Srgb, FormatB8G8R8A8Unorm} {
		for _, f := range formats {
			if f.Format == want && f.ColorSpace == ColorSpaceSrgbNonlinear {
				return f
			}
		}
	}
	return formats[0]
}

// choosePresentMode returns preferred when available and FIFO otherwise.
func choosePresentMode(modes []PresentMode, preferred PresentMode) PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return PresentModeFifo
}

func chooseExtent(caps SurfaceCapabilities, desired Extent2D) Extent2D {
	if caps.CurrentExtent != UndefinedExtent {
		return caps.CurrentExtent
	}
	return Extent2D{
		Width:  clamp(desired.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(desired.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func chooseTransform(caps SurfaceCapabilities) uint32 {
	if caps.SupportedTransforms&TransformIdentity != 0 {
		return TransformIdentity
	}
	return caps.CurrentTransform
}

func chooseCompositeAlpha(caps SurfaceCapabilities) uint32 {
	for _, bit := range []uint32{
		CompositeAlphaOpaque,
		CompositeAlphaPreMultiplied,
		CompositeAlphaPostMultiplied,
		CompositeAlphaInherit,
	} {
		if caps.SupportedCompositeAlpha&bit != 0 {
			return bit
		}
	}
	return CompositeAlphaOpaque
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
