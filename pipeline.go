package grayv

import "github.com/pkg/errors"

// ScreenVertexCount is the full-screen triangle generated by the vertex
// shader from gl_VertexIndex; there is no vertex input.
const ScreenVertexCount = 3

func (p *ScreenPass) buildPipeline() (Pipeline, error) {
	pipeline, err := p.session.Driver().CreateGraphicsPipeline(p.session.Device(), GraphicsPipelineInfo{
		Layout:     p.layout,
		RenderPass: p.pass,
		Stages:     []StageInfo{p.vertex.StageInfo(), p.fragment.StageInfo()},
	})
	if err != nil {
		return 0, errors.Wrap(err, "create graphics pipeline")
	}
	return pipeline, nil
}

// RebuildPipeline creates a pipeline from the current shader modules and
// replaces the bound one only on success. The caller must make sure no
// in-flight frame still uses the old pipeline.
func (p *ScreenPass) RebuildPipeline() error {
	if p.destroyed {
		return ErrDestroyed
	}
	pipeline, err := p.buildPipeline()
	if err != nil {
		p.logger.Errorf("pipeline rebuild failed, keeping previous: %v", err)
		return err
	}
	old := p.pipeline
	p.pipeline = pipeline
	if old != 0 {
		p.session.Driver().DestroyPipeline(p.session.Device(), old)
	}
	return nil
}

func (p *ScreenPass) Pipeline() Pipeline { return p.pipeline }

func (p *ScreenPass) RenderPass() RenderPass { return p.pass }

func (p *ScreenPass) Framebuffers() []Framebuffer { return p.framebuffers }

// SetConstants sets the push constants used by the next recorded frames.
func (p *ScreenPass) SetConstants(c FrameConstants) { p.constants = c }

// SetClearColor sets the color the render pass clears to.
func (p *ScreenPass) SetClearColor(c [4]float32) { p.clear = c }

// RecordFrame records the screen pass for the swapchain image at imageIndex.
func (p *ScreenPass) RecordFrame(cb CommandBuffer, imageIndex uint32, sc *Swapchain) error {
	if p.destroyed {
		return ErrDestroyed
	}
	if int(imageIndex) >= len(p.framebuffers) {
		return errors.Errorf("image index %d out of range (%d framebuffers)", imageIndex, len(p.framebuffers))
	}
	drv := p.session.Driver()
	if err := drv.BeginCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	drv.CmdBeginRenderPass(cb, RenderPassBegin{
		Pass:        p.pass,
		Framebuffer: p.framebuffers[imageIndex],
		Extent:      sc.Extent,
		ClearColor:  p.clear,
	})
	drv.CmdBindPipeline(cb, p.pipeline)
	drv.CmdSetViewportScissor(cb, sc.Extent)
	drv.CmdPushConstants(cb, p.layout, p.constants.Bytes())
	drv.CmdDraw(cb, ScreenVertexCount, 1)
	drv.CmdEndRenderPass(cb)
	return errors.Wrap(drv.EndCommandBuffer(cb), "end command buffer")
}
