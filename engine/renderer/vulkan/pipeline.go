package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
}

type VulkanPipelineConfig struct {
	Renderpass *VulkanRenderpass
	// Size of one vertex in the bound vertex buffer.
	Stride               uint32
	Attributes           []vk.VertexInputAttributeDescription
	DescriptorSetLayouts []vk.DescriptorSetLayout
	Stages               []vk.PipelineShaderStageCreateInfo
	// Initial viewport and scissor. Both are dynamic state.
	Viewport vk.Viewport
	Scissor  vk.Rect2D
}

// QuadPipelineConfig describes the pipeline drawing the textured quad with
// vertices laid out as Vertex.
func QuadPipelineConfig(renderpass *VulkanRenderpass, layouts []vk.DescriptorSetLayout, stages []vk.PipelineShaderStageCreateInfo, extent vk.Extent2D) *VulkanPipelineConfig {
	return &VulkanPipelineConfig{
		Renderpass:           renderpass,
		Stride:               vertexStride,
		Attributes:           vertexAttributes(),
		DescriptorSetLayouts: layouts,
		Stages:               stages,
		Viewport: vk.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		},
		Scissor: vk.Rect2D{Extent: extent},
	}
}

func vertexBindings(stride uint32) []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	}}
}

func rasterizationState() vk.PipelineRasterizationStateCreateInfo {
	return vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
}

func multisampleState() vk.PipelineMultisampleStateCreateInfo {
	return vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
}

func depthStencilState() vk.PipelineDepthStencilStateCreateInfo {
	noop := vk.StencilOpState{
		FailOp:      vk.StencilOpKeep,
		PassOp:      vk.StencilOpKeep,
		DepthFailOp: vk.StencilOpKeep,
		CompareOp:   vk.CompareOpAlways,
	}
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		Front:            noop,
		Back:             noop,
		MaxDepthBounds:   1.0,
	}
}

func colorBlendAttachment() vk.PipelineColorBlendAttachmentState {
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorSrcColor,
		DstColorBlendFactor: vk.BlendFactorOneMinusDstColor,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorZero,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
}

func dynamicStates() []vk.DynamicState {
	return []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{config.Viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{config.Scissor},
	}
	rasterizer := rasterizationState()
	multisampling := multisampleState()
	depthStencil := depthStencilState()

	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpClear,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment()},
	}

	states := dynamicStates()
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(states)),
		PDynamicStates:    states,
	}

	bindings := vertexBindings(config.Stride)
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:    config.DescriptorSetLayouts,
	}

	if err := context.locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
			return resultError("vkCreatePipelineLayout", res)
		}
		outPipeline.PipelineLayout = layout
		return nil
	}); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		var cache vk.PipelineCache
		if res := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, cache, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, context.Allocator, pipelines); res != vk.Success {
			return resultError("vkCreateGraphicsPipelines", res)
		}
		return nil
	}); err != nil {
		core.LogError(err.Error())
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	_ = context.locks.SafeCall(PipelineManagement, func() error {
		if pipeline.Handle != nil {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
			pipeline.Handle = nil
		}
		if pipeline.PipelineLayout != nil {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = nil
		}
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer vk.CommandBuffer) {
	vk.CmdBindPipeline(commandBuffer, vk.PipelineBindPointGraphics, pipeline.Handle)
}
