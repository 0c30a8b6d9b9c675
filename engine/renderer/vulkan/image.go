package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

// ImageCreate creates a 2D image with one mip level and layer, allocates
// and binds its memory, and optionally creates a view over it.
func ImageCreate(
	context *VulkanContext,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateImage", res)
		core.LogError(err.Error())
		return nil, err
	}
	outImage.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		outImage.Destroy(context)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := resultError("vkAllocateMemory", res)
		core.LogError(err.Error())
		outImage.Destroy(context)
		return nil, err
	}
	outImage.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		err := resultError("vkBindImageMemory", res)
		core.LogError(err.Error())
		outImage.Destroy(context)
		return nil, err
	}

	if createView {
		if err := outImage.ViewCreate(context, viewAspectFlags); err != nil {
			outImage.Destroy(context)
			return nil, err
		}
	}
	return outImage, nil
}

func (img *VulkanImage) ViewCreate(context *VulkanContext, aspectFlags vk.ImageAspectFlags) error {
	view, err := ImageViewCreate(context, img.Handle, img.Format, aspectFlags)
	if err != nil {
		return err
	}
	img.View = view
	return nil
}

// ImageViewCreate creates a 2D view with an explicit RGBA component mapping.
func ImageViewCreate(context *VulkanContext, image vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectFlags,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		err := resultError("vkCreateImageView", res)
		core.LogError(err.Error())
		return view, err
	}
	return view, nil
}

func (img *VulkanImage) Destroy(context *VulkanContext) {
	var nilView vk.ImageView
	var nilMemory vk.DeviceMemory
	var nilImage vk.Image
	if img.View != nilView {
		vk.DestroyImageView(context.Device.LogicalDevice, img.View, context.Allocator)
		img.View = nilView
	}
	if img.Memory != nilMemory {
		vk.FreeMemory(context.Device.LogicalDevice, img.Memory, context.Allocator)
		img.Memory = nilMemory
	}
	if img.Handle != nilImage {
		vk.DestroyImage(context.Device.LogicalDevice, img.Handle, context.Allocator)
		img.Handle = nilImage
	}
}

type transition struct {
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
}

// layoutTransition returns the synchronization scopes for the layout changes
// the player performs.
func layoutTransition(oldLayout, newLayout vk.ImageLayout) (transition, error) {
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return transition{
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return transition{
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		}, nil
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal:
		return transition{
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			DstAccess: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
		}, nil
	}
	return transition{}, fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
}

// recordTransition records a pipeline barrier moving image from oldLayout to
// newLayout.
func recordTransition(commandBuffer vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) error {
	t, err := layoutTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       t.SrcAccess,
		DstAccessMask:       t.DstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(commandBuffer, t.SrcStage, t.DstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}
