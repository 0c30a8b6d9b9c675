package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width uint32, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateFramebuffer", res)
		core.LogError(err.Error())
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	var nilFramebuffer vk.Framebuffer
	if vfb.Handle != nilFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
	}
	vfb.Handle = nilFramebuffer
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
