package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
	"github.com/spaghettifunk/cozy/engine/math"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	// Requested size in bytes.
	Size uint64
	// Size of the backing allocation, at least Size.
	AllocationSize uint64
	Usage          vk.BufferUsageFlags
	MemoryFlags    vk.MemoryPropertyFlags
	IsBound        bool
}

// BufferCreate creates an exclusive buffer and allocates memory for it. The
// memory is not bound yet so it can be filled first.
func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	outBuffer := &VulkanBuffer{
		Size:        size,
		Usage:       usage,
		MemoryFlags: memoryFlags,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := resultError("vkCreateBuffer", res)
		core.LogError(err.Error())
		return nil, err
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		outBuffer.Destroy(context)
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
		outBuffer.Destroy(context)
		return nil, err
	}
	outBuffer.Memory = memory
	outBuffer.AllocationSize = uint64(requirements.Size)
	return outBuffer, nil
}

func (b *VulkanBuffer) Bind(context *VulkanContext, offset uint64) error {
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, b.Handle, b.Memory, vk.DeviceSize(offset)); res != vk.Success {
		err := resultError("vkBindBufferMemory", res)
		core.LogError(err.Error())
		return err
	}
	b.IsBound = true
	return nil
}

// Map exposes the whole allocation to the host. The buffer must have been
// created host visible.
func (b *VulkanBuffer) Map(context *VulkanContext) ([]byte, error) {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.AllocationSize), 0, &ptr); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(ptr), b.AllocationSize), nil
}

func (b *VulkanBuffer) Unmap(context *VulkanContext) {
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
}

// Fill maps the buffer, writes data with the given element alignment and
// unmaps it again.
func Fill[T any](context *VulkanContext, b *VulkanBuffer, data []T, alignment uint64) error {
	dst, err := b.Map(context)
	if err != nil {
		return err
	}
	defer b.Unmap(context)
	_, err = CopyAligned(dst, data, alignment)
	return err
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	var nilMemory vk.DeviceMemory
	var nilBuffer vk.Buffer
	if b.Memory != nilMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nilMemory
	}
	if b.Handle != nilBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nilBuffer
	}
	b.IsBound = false
}

// CopyAligned writes src into dst placing element k at
// k*AlignUp(sizeof(T), alignment). Padding between elements is zeroed. It
// returns the number of bytes spanned by the written elements.
func CopyAligned[T any](dst []byte, src []T, alignment uint64) (int, error) {
	var zero T
	size := uint64(unsafe.Sizeof(zero))
	if len(src) == 0 || size == 0 {
		return 0, nil
	}
	stride := math.AlignUp(size, alignment)
	need := stride*uint64(len(src)-1) + size
	if uint64(len(dst)) < need {
		return 0, fmt.Errorf("aligned copy needs %d bytes, destination has %d", need, len(dst))
	}

	for k := range src {
		offset := uint64(k) * stride
		copy(dst[offset:offset+size], unsafe.Slice((*byte)(unsafe.Pointer(&src[k])), size))
		if k < len(src)-1 {
			clear(dst[offset+size : offset+stride])
		}
	}
	return int(need), nil
}

// ReadAligned reads count elements laid out by CopyAligned.
func ReadAligned[T any](src []byte, count int, alignment uint64) ([]T, error) {
	var zero T
	size := uint64(unsafe.Sizeof(zero))
	out := make([]T, count)
	if count == 0 || size == 0 {
		return out, nil
	}
	stride := math.AlignUp(size, alignment)
	need := stride*uint64(count-1) + size
	if uint64(len(src)) < need {
		return nil, fmt.Errorf("aligned read needs %d bytes, source has %d", need, len(src))
	}

	for k := range out {
		offset := uint64(k) * stride
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[k])), size), src[offset:offset+size])
	}
	return out, nil
}
