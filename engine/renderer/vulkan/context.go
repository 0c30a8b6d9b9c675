package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current size.
	FramebufferWidth  uint32
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	locks *VulkanLockPool
}

func NewContext() *VulkanContext {
	return &VulkanContext{
		Allocator: nil,
		locks:     NewVulkanLockPool(),
	}
}

// FindMemoryIndex picks a memory type of the selected device.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	index, err := SelectMemoryType(&vc.Device.Memory, typeFilter, propertyFlags)
	if err != nil {
		core.LogWarn("Unable to find suitable memory type (filter %#x, flags %#x)", typeFilter, uint32(propertyFlags))
	}
	return index, err
}

// SelectMemoryType returns the lowest memory type index allowed by typeBits
// whose property flags include every flag requested. props must already be
// dereferenced.
func SelectMemoryType(props *vk.PhysicalDeviceMemoryProperties, typeBits uint32, flags vk.MemoryPropertyFlags) (uint32, error) {
	count := props.MemoryTypeCount
	if count > uint32(len(props.MemoryTypes)) {
		count = uint32(len(props.MemoryTypes))
	}
	for i := uint32(0); i < count; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if props.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: type bits %#b, flags %#x", core.ErrNoSuitableMemoryType, typeBits, uint32(flags))
}
