package vkdriver

import (
	"unsafe"

	"github.com/andewx/grayv"
	vk "github.com/vulkan-go/vulkan"
)

// pushStages are the stages every pipeline layout exposes its push
// constant range to; CmdPushConstants must name the same set.
const pushStages = vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit

func (d *Driver) CreateCommandPool(dev grayv.Device, family uint32) (grayv.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.device(dev), &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.CommandPool(d.reg.put(pool)), nil
}

// DestroyCommandPool frees the pool's command buffers with it.
func (d *Driver) DestroyCommandPool(dev grayv.Device, pool grayv.CommandPool) {
	p := lookup[vk.CommandPool](d.reg, uint64(pool))
	if p == nil {
		return
	}
	vk.DestroyCommandPool(d.device(dev), p, nil)
	d.reg.drop(uint64(pool))
}

func (d *Driver) AllocateCommandBuffers(dev grayv.Device, pool grayv.CommandPool, count uint32) ([]grayv.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(d.device(dev), &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        lookup[vk.CommandPool](d.reg, uint64(pool)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, buffers)
	if err := grayv.NewError(result(ret)); err != nil {
		return nil, err
	}
	out := make([]grayv.CommandBuffer, count)
	for i, cb := range buffers {
		h := d.reg.put(cb)
		d.reg.own(uint64(pool), h)
		out[i] = grayv.CommandBuffer(h)
	}
	return out, nil
}

func (d *Driver) cmd(cb grayv.CommandBuffer) vk.CommandBuffer {
	return lookup[vk.CommandBuffer](d.reg, uint64(cb))
}

func (d *Driver) ResetCommandBuffer(cb grayv.CommandBuffer) error {
	return grayv.NewError(result(vk.ResetCommandBuffer(d.cmd(cb), 0)))
}

func (d *Driver) BeginCommandBuffer(cb grayv.CommandBuffer) error {
	ret := vk.BeginCommandBuffer(d.cmd(cb), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	return grayv.NewError(result(ret))
}

func (d *Driver) EndCommandBuffer(cb grayv.CommandBuffer) error {
	return grayv.NewError(result(vk.EndCommandBuffer(d.cmd(cb))))
}

func (d *Driver) CmdBeginRenderPass(cb grayv.CommandBuffer, begin grayv.RenderPassBegin) {
	color := begin.ClearColor
	vk.CmdBeginRenderPass(d.cmd(cb), &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  lookup[vk.RenderPass](d.reg, uint64(begin.Pass)),
		Framebuffer: lookup[vk.Framebuffer](d.reg, uint64(begin.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vkExtent(begin.Extent),
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{vk.NewClearValue(color[:])},
	}, vk.SubpassContentsInline)
}

func (d *Driver) CmdEndRenderPass(cb grayv.CommandBuffer) {
	vk.CmdEndRenderPass(d.cmd(cb))
}

func (d *Driver) CmdBindPipeline(cb grayv.CommandBuffer, pipeline grayv.Pipeline) {
	vk.CmdBindPipeline(d.cmd(cb), vk.PipelineBindPointGraphics, lookup[vk.Pipeline](d.reg, uint64(pipeline)))
}

func (d *Driver) CmdSetViewportScissor(cb grayv.CommandBuffer, e grayv.Extent2D) {
	cmd := d.cmd(cb)
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{{
		Width:    float32(e.Width),
		Height:   float32(e.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vkExtent(e),
	}})
}

func (d *Driver) CmdPushConstants(cb grayv.CommandBuffer, layout grayv.PipelineLayout, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.cmd(cb), lookup[vk.PipelineLayout](d.reg, uint64(layout)),
		vk.ShaderStageFlags(pushStages), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Driver) CmdDraw(cb grayv.CommandBuffer, vertexCount, instanceCount uint32) {
	vk.CmdDraw(d.cmd(cb), vertexCount, instanceCount, 0, 0)
}
