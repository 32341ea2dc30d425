package grayv

import (
	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

// ScreenPass draws a full-screen triangle with the screen shaders into the
// swapchain images. It owns a color render pass, one framebuffer per
// swapchain view, the pipeline layout and the pipeline.
type ScreenPass struct {
	session *Session
	logger  log.Logger

	pass         RenderPass
	format       Format
	framebuffers []Framebuffer

	layout   PipelineLayout
	pipeline Pipeline
	vertex   *ShaderUnit
	fragment *ShaderUnit

	constants FrameConstants
	clear     [4]float32

	destroyed bool
}

// NewScreenPass builds the pass for sc and registers nothing; the caller adds
// it as a swapchain listener.
func NewScreenPass(session *Session, sc *Swapchain, vertex, fragment *ShaderUnit) (_ *ScreenPass, err error) {
	if st := vertex.StageInfo().Stage; st != StageVertex {
		return nil, errors.Wrapf(ErrUnknownStage, "%s is a %s shader, want vert", vertex.Path(), st)
	}
	if st := fragment.StageInfo().Stage; st != StageFragment {
		return nil, errors.Wrapf(ErrUnknownStage, "%s is a %s shader, want frag", fragment.Path(), st)
	}
	p := &ScreenPass{
		session:  session,
		logger:   log.New("screenpass"),
		vertex:   vertex,
		fragment: fragment,
		clear:    [4]float32{0, 0, 0, 1},
	}
	defer func() {
		if err != nil {
			p.release()
		}
	}()

	if err = p.createRenderPass(sc.Format.Format); err != nil {
		return nil, err
	}
	if err = p.createFramebuffers(sc); err != nil {
		return nil, err
	}
	if p.layout, err = session.Driver().CreatePipelineLayout(session.Device(), FrameConstantsSize); err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	if p.pipeline, err = p.buildPipeline(); err != nil {
		return nil, err
	}
	session.acquire()
	return p, nil
}

func (p *ScreenPass) createRenderPass(format Format) error {
	pass, err := p.session.Driver().CreateRenderPass(p.session.Device(), format)
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}
	p.pass = pass
	p.format = format
	return nil
}

func (p *ScreenPass) createFramebuffers(sc *Swapchain) error {
	drv := p.session.Driver()
	dev := p.session.Device()
	p.framebuffers = make([]Framebuffer, 0, len(sc.Views))
	for _, view := range sc.Views {
		fb, err := drv.CreateFramebuffer(dev, p.pass, view, sc.Extent)
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		p.framebuffers = append(p.framebuffers, fb)
	}
	return nil
}

func (p *ScreenPass) destroyFramebuffers() {
	drv := p.session.Driver()
	dev := p.session.Device()
	for _, fb := range p.framebuffers {
		drv.DestroyFramebuffer(dev, fb)
	}
	p.framebuffers = nil
}

// SwapchainReleasing drops the framebuffers referencing the old views.
func (p *ScreenPass) SwapchainReleasing(old *Swapchain) {
	p.destroyFramebuffers()
}

// SwapchainRebuilt recreates framebuffers, and the render pass and pipeline
// when the image format changed.
func (p *ScreenPass) SwapchainRebuilt(sc *Swapchain) error {
	if p.destroyed {
		return nil
	}
	p.destroyFramebuffers()
	if sc.Format.Format != p.format {
		p.logger.Infof("swapchain format changed from %d to %d", p.format, sc.Format.Format)
		drv := p.session.Driver()
		dev := p.session.Device()
		old := p.pass
		if err := p.createRenderPass(sc.Format.Format); err != nil {
			return err
		}
		if err := p.RebuildPipeline(); err != nil {
			return err
		}
		drv.DestroyRenderPass(dev, old)
	}
	return p.createFramebuffers(sc)
}

func (p *ScreenPass) release() {
	drv := p.session.Driver()
	dev := p.session.Device()
	if p.pipeline != 0 {
		drv.DestroyPipeline(dev, p.pipeline)
		p.pipeline = 0
	}
	if p.layout != 0 {
		drv.DestroyPipelineLayout(dev, p.layout)
		p.layout = 0
	}
	p.destroyFramebuffers()
	if p.pass != 0 {
		drv.DestroyRenderPass(dev, p.pass)
		p.pass = 0
	}
}

// Destroy releases pipeline, layout, framebuffers and render pass.
func (p *ScreenPass) Destroy() {
	if p.destroyed {
		return
	}
	p.release()
	p.destroyed = true
	p.session.releaseDependent()
}
