package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadPipelineConfig(t *testing.T) {
	rp := &VulkanRenderpass{}
	layouts := []vk.DescriptorSetLayout{nil}
	extent := vk.Extent2D{Width: 640, Height: 360}

	cfg := QuadPipelineConfig(rp, layouts, nil, extent)
	assert.Same(t, rp, cfg.Renderpass)
	assert.EqualValues(t, 24, cfg.Stride)
	assert.Equal(t, float32(640), cfg.Viewport.Width)
	assert.Equal(t, float32(360), cfg.Viewport.Height)
	assert.Equal(t, float32(1), cfg.Viewport.MaxDepth)
	assert.Equal(t, extent, cfg.Scissor.Extent)

	require.Len(t, cfg.Attributes, 2)
	assert.Equal(t, vk.FormatR32g32b32a32Sfloat, cfg.Attributes[0].Format)
	assert.EqualValues(t, 0, cfg.Attributes[0].Offset)
	assert.EqualValues(t, 0, cfg.Attributes[0].Location)
	assert.Equal(t, vk.FormatR32g32Sfloat, cfg.Attributes[1].Format)
	assert.EqualValues(t, 16, cfg.Attributes[1].Offset)
	assert.EqualValues(t, 1, cfg.Attributes[1].Location)

	bindings := vertexBindings(cfg.Stride)
	require.Len(t, bindings, 1)
	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)
}

func TestFixedFunctionState(t *testing.T) {
	raster := rasterizationState()
	assert.Equal(t, vk.PolygonModeFill, raster.PolygonMode)
	assert.Equal(t, vk.FrontFaceCounterClockwise, raster.FrontFace)
	assert.Equal(t, float32(1), raster.LineWidth)

	assert.Equal(t, vk.SampleCount1Bit, multisampleState().RasterizationSamples)

	depth := depthStencilState()
	assert.EqualValues(t, vk.True, depth.DepthTestEnable)
	assert.EqualValues(t, vk.True, depth.DepthWriteEnable)
	assert.Equal(t, vk.CompareOpLessOrEqual, depth.DepthCompareOp)
	assert.Equal(t, float32(1), depth.MaxDepthBounds)
	for _, face := range []vk.StencilOpState{depth.Front, depth.Back} {
		assert.Equal(t, vk.StencilOpKeep, face.FailOp)
		assert.Equal(t, vk.StencilOpKeep, face.PassOp)
		assert.Equal(t, vk.StencilOpKeep, face.DepthFailOp)
		assert.Equal(t, vk.CompareOpAlways, face.CompareOp)
	}

	blend := colorBlendAttachment()
	assert.EqualValues(t, vk.False, blend.BlendEnable)
	assert.Equal(t, vk.ColorComponentFlags(0xf), blend.ColorWriteMask)

	assert.Equal(t, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}, dynamicStates())
}

func TestDescriptorLayout(t *testing.T) {
	bindings := descriptorSetLayoutBindings()
	require.Len(t, bindings, 2)
	assert.EqualValues(t, 0, bindings[0].Binding)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.EqualValues(t, 1, bindings[1].Binding)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, bindings[1].DescriptorType)
	for _, b := range bindings {
		assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), b.StageFlags)
		assert.EqualValues(t, 1, b.DescriptorCount)
	}

	sizes := descriptorPoolSizes()
	require.Len(t, sizes, 2)
	assert.EqualValues(t, 1, sizes[0].DescriptorCount)
	assert.EqualValues(t, 1, sizes[1].DescriptorCount)
}

func TestRenderpassAttachments(t *testing.T) {
	attachments := renderpassAttachments(vk.FormatB8g8r8a8Unorm, vk.FormatD16Unorm)
	require.Len(t, attachments, 2)

	color := attachments[0]
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, color.Format)
	assert.Equal(t, vk.AttachmentLoadOpClear, color.LoadOp)
	assert.Equal(t, vk.AttachmentStoreOpStore, color.StoreOp)
	assert.Equal(t, vk.ImageLayoutPresentSrc, color.FinalLayout)

	depth := attachments[1]
	assert.Equal(t, vk.FormatD16Unorm, depth.Format)
	assert.Equal(t, vk.AttachmentLoadOpClear, depth.LoadOp)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, depth.InitialLayout)
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, depth.FinalLayout)

	dep := renderpassDependency()
	assert.Equal(t, uint32(vk.SubpassExternal), dep.SrcSubpass)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), dep.DstStageMask)
}
