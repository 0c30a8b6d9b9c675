package vulkan

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

// Uploader moves host data into buffers and images. Image uploads are
// recorded through the one-shot executor and are complete on return.
type Uploader struct {
	context  *VulkanContext
	executor *OneShotExecutor
	device   textureDevice
}

func NewUploader(context *VulkanContext, executor *OneShotExecutor) *Uploader {
	return &Uploader{
		context:  context,
		executor: executor,
		device:   &vkTextureDevice{context: context, executor: executor},
	}
}

// textureDevice is what a texture upload needs from the device.
type textureDevice interface {
	stagingBuffer(pix []byte) (*VulkanBuffer, error)
	destroyBuffer(b *VulkanBuffer)
	createImage(width, height uint32) (*VulkanImage, error)
	destroyImage(img *VulkanImage)
	createView(img *VulkanImage, aspect vk.ImageAspectFlags) error
	createSampler() (vk.Sampler, error)
	execute(record func(cb vk.CommandBuffer)) error
	transition(cb vk.CommandBuffer, img *VulkanImage, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) error
	copyBufferToImage(cb vk.CommandBuffer, src *VulkanBuffer, dst *VulkanImage, width, height uint32)
}

// UploadBuffer creates a host visible buffer holding data laid out at the
// natural alignment of T.
func UploadBuffer[T any](u *Uploader, label string, data []T, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	return uploadBuffer(u.context, label, data, usage)
}

func uploadBuffer[T any](context *VulkanContext, label string, data []T, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	var zero T
	size := uint64(len(data)) * uint64(unsafe.Sizeof(zero))
	if size == 0 {
		return nil, fmt.Errorf("upload %s: %w", label, core.ErrEmptyUpload)
	}
	id := uuid.NewString()
	core.LogDebug("upload %s [%s]: %d bytes", label, id, size)

	buffer, err := BufferCreate(context, size, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	if err := Fill(context, buffer, data, uint64(unsafe.Alignof(zero))); err != nil {
		core.LogError("upload %s [%s] failed: %s", label, id, err)
		buffer.Destroy(context)
		return nil, err
	}
	if err := buffer.Bind(context, 0); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	return buffer, nil
}

type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

// UploadTexture copies img into a device local sampled image ready to be
// read by the fragment shader.
func (u *Uploader) UploadTexture(img *image.RGBA) (*VulkanTexture, error) {
	if img == nil || img.Rect.Empty() || len(img.Pix) == 0 {
		return nil, fmt.Errorf("upload texture: %w", core.ErrEmptyUpload)
	}
	width := uint32(img.Rect.Dx())
	height := uint32(img.Rect.Dy())

	staging, err := u.device.stagingBuffer(img.Pix)
	if err != nil {
		return nil, err
	}
	defer u.device.destroyBuffer(staging)

	texImage, err := u.device.createImage(width, height)
	if err != nil {
		return nil, err
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	var recordErr error
	err = u.device.execute(func(cb vk.CommandBuffer) {
		if recordErr = u.device.transition(cb, texImage, aspect, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); recordErr != nil {
			return
		}
		u.device.copyBufferToImage(cb, staging, texImage, width, height)
		recordErr = u.device.transition(cb, texImage, aspect, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		u.device.destroyImage(texImage)
		return nil, err
	}

	if err := u.device.createView(texImage, aspect); err != nil {
		u.device.destroyImage(texImage)
		return nil, err
	}

	sampler, err := u.device.createSampler()
	if err != nil {
		u.device.destroyImage(texImage)
		return nil, err
	}
	core.LogDebug("texture uploaded (%dx%d)", width, height)
	return &VulkanTexture{Image: texImage, Sampler: sampler}, nil
}

// DepthAttachmentCreate creates the depth image for a framebuffer of the
// given size and moves it to the attachment layout.
func (u *Uploader) DepthAttachmentCreate(width, height uint32) (*VulkanImage, error) {
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	depth, err := ImageCreate(
		u.context,
		width, height,
		u.context.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		aspect,
	)
	if err != nil {
		return nil, err
	}

	var recordErr error
	err = u.executor.Execute(u.context.Device.GraphicsQueue, nil, nil, nil, func(cb vk.CommandBuffer) {
		recordErr = recordTransition(cb, depth.Handle, aspect, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		depth.Destroy(u.context)
		return nil, err
	}
	return depth, nil
}

func samplerInfo() vk.SamplerCreateInfo {
	return vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeMirroredRepeat,
		AddressModeV:  vk.SamplerAddressModeMirroredRepeat,
		AddressModeW:  vk.SamplerAddressModeMirroredRepeat,
		MaxAnisotropy: 1.0,
		BorderColor:   vk.BorderColorFloatOpaqueWhite,
		CompareOp:     vk.CompareOpNever,
	}
}

func SamplerCreate(context *VulkanContext) (vk.Sampler, error) {
	info := samplerInfo()
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &info, context.Allocator, &sampler); res != vk.Success {
		err := resultError("vkCreateSampler", res)
		core.LogError(err.Error())
		return sampler, err
	}
	return sampler, nil
}

func (t *VulkanTexture) Destroy(context *VulkanContext) {
	var nilSampler vk.Sampler
	if t.Sampler != nilSampler {
		vk.DestroySampler(context.Device.LogicalDevice, t.Sampler, context.Allocator)
		t.Sampler = nilSampler
	}
	if t.Image != nil {
		t.Image.Destroy(context)
		t.Image = nil
	}
}

type vkTextureDevice struct {
	context  *VulkanContext
	executor *OneShotExecutor
}

func (d *vkTextureDevice) stagingBuffer(pix []byte) (*VulkanBuffer, error) {
	return uploadBuffer(d.context, "texture staging", pix, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
}

func (d *vkTextureDevice) destroyBuffer(b *VulkanBuffer) {
	b.Destroy(d.context)
}

func (d *vkTextureDevice) createImage(width, height uint32) (*VulkanImage, error) {
	return ImageCreate(
		d.context,
		width, height,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		false,
		0,
	)
}

func (d *vkTextureDevice) destroyImage(img *VulkanImage) {
	img.Destroy(d.context)
}

func (d *vkTextureDevice) createView(img *VulkanImage, aspect vk.ImageAspectFlags) error {
	return img.ViewCreate(d.context, aspect)
}

func (d *vkTextureDevice) createSampler() (vk.Sampler, error) {
	return SamplerCreate(d.context)
}

func (d *vkTextureDevice) execute(record func(cb vk.CommandBuffer)) error {
	return d.executor.Execute(d.context.Device.GraphicsQueue, nil, nil, nil, record)
}

func (d *vkTextureDevice) transition(cb vk.CommandBuffer, img *VulkanImage, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) error {
	return recordTransition(cb, img.Handle, aspect, oldLayout, newLayout)
}

func (d *vkTextureDevice) copyBufferToImage(cb vk.CommandBuffer, src *VulkanBuffer, dst *VulkanImage, width, height uint32) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb, src.Handle, dst.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}
