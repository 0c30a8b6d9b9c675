package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
	emath "github.com/spaghettifunk/cozy/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// chooseSurfaceFormat prefers B8G8R8A8_UNORM in the sRGB non-linear color
// space and falls back to the first reported format.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface extent when the window system fixes it and
// the framebuffer size clamped to the supported range otherwise.
func chooseExtent(caps *vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  emath.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: emath.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps *vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func SwapchainCreate(context *VulkanContext, uploader *Uploader, width uint32, height uint32) (*VulkanSwapchain, error) {
	return createSwapchain(context, uploader, width, height)
}

// SwapchainRecreate destroys the swapchain and creates a new one at the
// given size. The surface support is queried again.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, uploader *Uploader, width uint32, height uint32) (*VulkanSwapchain, error) {
	vs.destroySwapchain(context)
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		return nil, err
	}
	return createSwapchain(context, uploader, width, height)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

// SwapchainAcquireNextImageIndex returns core.ErrSwapchainOutOfDate when the
// swapchain must be recreated before rendering.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	var fence vk.Fence
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		// A suboptimal image still signals the semaphore; present it and
		// recreate afterwards.
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	}
	err := resultError("vkAcquireNextImageKHR", result)
	core.LogError(err.Error())
	return 0, err
}

// SwapchainPresent hands the image back for presentation once
// renderCompleteSemaphore signals.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	family := uint32(context.Device.GraphicsQueueIndex)
	return context.locks.SafeQueueCall(family, func() error {
		switch result := vk.QueuePresent(presentQueue, &presentInfo); result {
		case vk.Success:
			return nil
		case vk.Suboptimal, vk.ErrorOutOfDate:
			return core.ErrSwapchainOutOfDate
		default:
			err := resultError("vkQueuePresentKHR", result)
			core.LogError(err.Error())
			return err
		}
	})
}

// RegenerateFramebuffers creates one framebuffer per swapchain image, each
// sharing the depth attachment.
func (vs *VulkanSwapchain) RegenerateFramebuffers(context *VulkanContext, renderpass *VulkanRenderpass) error {
	vs.destroyFramebuffers(context)
	vs.Framebuffers = make([]*VulkanFramebuffer, len(vs.Views))
	for i, view := range vs.Views {
		attachments := []vk.ImageView{view, vs.DepthAttachment.View}
		fb, err := FramebufferCreate(context, renderpass, vs.Extent.Width, vs.Extent.Height, attachments)
		if err != nil {
			return err
		}
		vs.Framebuffers[i] = fb
	}
	return nil
}

func createSwapchain(context *VulkanContext, uploader *Uploader, width, height uint32) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	caps := &support.Capabilities
	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		Extent:      chooseExtent(caps, width, height),
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    chooseImageCount(caps),
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(support.PresentModes),
		Clipped:          vk.True,
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateSwapchainKHR", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = handle

	var imageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		swapchain.destroySwapchain(context)
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	swapchain.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &imageCount, swapchain.Images); res != vk.Success {
		swapchain.destroySwapchain(context)
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}

	swapchain.Views = make([]vk.ImageView, 0, imageCount)
	for _, img := range swapchain.Images {
		view, err := ImageViewCreate(context, img, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			swapchain.destroySwapchain(context)
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	if context.Device.DepthFormat == vk.FormatUndefined && !DeviceDetectDepthFormat(context.Device) {
		swapchain.destroySwapchain(context)
		return nil, fmt.Errorf("%w: no supported depth format", core.ErrNoSuitableDevice)
	}
	depth, err := uploader.DepthAttachmentCreate(swapchain.Extent.Width, swapchain.Extent.Height)
	if err != nil {
		swapchain.destroySwapchain(context)
		return nil, err
	}
	swapchain.DepthAttachment = depth

	core.LogInfo("Swapchain created (%dx%d, %d images).", swapchain.Extent.Width, swapchain.Extent.Height, imageCount)
	return swapchain, nil
}

func (vs *VulkanSwapchain) destroyFramebuffers(context *VulkanContext) {
	for _, fb := range vs.Framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	vs.Framebuffers = nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	vs.destroyFramebuffers(context)

	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(context)
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil

	var nilSwapchain vk.Swapchain
	if vs.Handle != nilSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = nilSwapchain
	}
}
