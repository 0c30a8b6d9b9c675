package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	X, Y, W, H float32
	// Clear color.
	R, G, B, A float32
	Depth      float32
	Stencil    uint32
}

// renderpassAttachments describes the color target, presented at the end of
// the pass, and the depth target, which stays in the attachment layout it
// was transitioned to at creation.
func renderpassAttachments(colorFormat, depthFormat vk.Format) []vk.AttachmentDescription {
	return []vk.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
}

func renderpassDependency() vk.SubpassDependency {
	return vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}
}

func RenderpassCreate(context *VulkanContext, w, h float32, clearColor [4]float32, depth float32, stencil uint32) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		W:       w,
		H:       h,
		R:       clearColor[0],
		G:       clearColor[1],
		B:       clearColor[2],
		A:       clearColor[3],
		Depth:   depth,
		Stencil: stencil,
	}

	attachments := renderpassAttachments(context.Swapchain.ImageFormat.Format, context.Device.DepthFormat)

	colorReference := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorReference,
		PDepthStencilAttachment: &depthReference,
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{renderpassDependency()},
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateRenderPass", res)
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = handle
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer vk.CommandBuffer, frameBuffer vk.Framebuffer) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{vr.R, vr.G, vr.B, vr.A})
	clearValues[1].SetDepthStencil(vr.Depth, vr.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: int32(vr.X), Y: int32(vr.Y)},
			Extent: vk.Extent2D{Width: uint32(vr.W), Height: uint32(vr.H)},
		},
		ClearValueCount: 2,
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer, &beginInfo, vk.SubpassContentsInline)
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer)
}
