package vkdriver

import (
	"github.com/andewx/grayv"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateShaderModule(dev grayv.Device, code []byte) (grayv.ShaderModule, error) {
	if err := grayv.ValidateBytecode(code); err != nil {
		return 0, err
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(d.device(dev), &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    grayv.BytecodeWords(code),
	}, nil, &module)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.ShaderModule(d.reg.put(module)), nil
}

func (d *Driver) DestroyShaderModule(dev grayv.Device, module grayv.ShaderModule) {
	m := lookup[vk.ShaderModule](d.reg, uint64(module))
	if m == nil {
		return
	}
	vk.DestroyShaderModule(d.device(dev), m, nil)
	d.reg.drop(uint64(module))
}

// CreateRenderPass creates a single subpass pass with one color attachment
// that is cleared on load and left ready for presentation.
func (d *Driver) CreateRenderPass(dev grayv.Device, format grayv.Format) (grayv.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         vk.Format(format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}
	colorRefs := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}}
	// Layout transition waits for the acquire semaphore, which is signaled
	// at the color attachment output stage.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.MaxUint32,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(d.device(dev), &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &pass)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.RenderPass(d.reg.put(pass)), nil
}

func (d *Driver) DestroyRenderPass(dev grayv.Device, pass grayv.RenderPass) {
	p := lookup[vk.RenderPass](d.reg, uint64(pass))
	if p == nil {
		return
	}
	vk.DestroyRenderPass(d.device(dev), p, nil)
	d.reg.drop(uint64(pass))
}

func (d *Driver) CreateFramebuffer(dev grayv.Device, pass grayv.RenderPass, view grayv.ImageView, e grayv.Extent2D) (grayv.Framebuffer, error) {
	views := []vk.ImageView{lookup[vk.ImageView](d.reg, uint64(view))}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.device(dev), &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      lookup[vk.RenderPass](d.reg, uint64(pass)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           e.Width,
		Height:          e.Height,
		Layers:          1,
	}, nil, &fb)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.Framebuffer(d.reg.put(fb)), nil
}

func (d *Driver) DestroyFramebuffer(dev grayv.Device, fb grayv.Framebuffer) {
	f := lookup[vk.Framebuffer](d.reg, uint64(fb))
	if f == nil {
		return
	}
	vk.DestroyFramebuffer(d.device(dev), f, nil)
	d.reg.drop(uint64(fb))
}

func (d *Driver) CreatePipelineLayout(dev grayv.Device, pushConstantSize uint32) (grayv.PipelineLayout, error) {
	var ranges []vk.PushConstantRange
	if pushConstantSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(pushStages),
			Offset:     0,
			Size:       pushConstantSize,
		}}
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.device(dev), &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.PipelineLayout(d.reg.put(layout)), nil
}

func (d *Driver) DestroyPipelineLayout(dev grayv.Device, layout grayv.PipelineLayout) {
	l := lookup[vk.PipelineLayout](d.reg, uint64(layout))
	if l == nil {
		return
	}
	vk.DestroyPipelineLayout(d.device(dev), l, nil)
	d.reg.drop(uint64(layout))
}

// CreateGraphicsPipeline builds a pipeline without vertex input that draws
// triangle lists with dynamic viewport and scissor.
func (d *Driver) CreateGraphicsPipeline(dev grayv.Device, info grayv.GraphicsPipelineInfo) (grayv.Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(info.Stages))
	for _, st := range info.Stages {
		if st.Module == 0 {
			return 0, errors.Errorf("%s stage has no module", st.Stage)
		}
		entry := st.EntryPoint
		if entry == "" {
			entry = "main"
		}
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(st.Stage),
			Module: lookup[vk.ShaderModule](d.reg, uint64(st.Module)),
			PName:  safeString(entry),
		})
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}
	blendAttachments := []vk.PipelineColorBlendAttachmentState{{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.device(dev), nil, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewport,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              lookup[vk.PipelineLayout](d.reg, uint64(info.Layout)),
		RenderPass:          lookup[vk.RenderPass](d.reg, uint64(info.RenderPass)),
		Subpass:             0,
	}}, nil, pipelines)
	if err := grayv.NewError(result(ret)); err != nil {
		return 0, err
	}
	return grayv.Pipeline(d.reg.put(pipelines[0])), nil
}

func (d *Driver) DestroyPipeline(dev grayv.Device, pipeline grayv.Pipeline) {
	p := lookup[vk.Pipeline](d.reg, uint64(pipeline))
	if p == nil {
		return
	}
	vk.DestroyPipeline(d.device(dev), p, nil)
	d.reg.drop(uint64(pipeline))
}
