package vulkan

import (
	"errors"
	"fmt"
	"image"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

// WindowSurface is the window the renderer presents to.
type WindowSurface interface {
	VulkanProcAddr() unsafe.Pointer
	RequiredExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (uint32, uint32)
	// ConsumeResize reports whether the framebuffer changed size since the
	// last call.
	ConsumeResize() bool
	WaitWhileMinimized()
}

type InitConfig struct {
	AppName        string
	Validation     bool
	ClearColor     [4]float32
	VertexShader   []uint32
	FragmentShader []uint32
	Texture        *image.RGBA
}

// VulkanRenderer draws one textured quad per frame.
type VulkanRenderer struct {
	window  WindowSurface
	context *VulkanContext

	setupExecutor *OneShotExecutor
	drawExecutor  *OneShotExecutor
	uploader      *Uploader

	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore

	indexBuffer   *VulkanBuffer
	vertexBuffer  *VulkanBuffer
	uniformBuffer *VulkanBuffer
	texture       *VulkanTexture
	descriptors   *VulkanDescriptorSet
	shaderStages  []*VulkanShaderStage
	pipeline      *VulkanPipeline

	FrameNumber uint64
	destroyed   bool
}

func New(window WindowSurface) *VulkanRenderer {
	return &VulkanRenderer{
		window:  window,
		context: NewContext(),
	}
}

func (vr *VulkanRenderer) Initialize(cfg InitConfig) error {
	if err := vr.initialize(cfg); err != nil {
		core.LogError("Vulkan renderer initialization failed: %s", err)
		if derr := vr.Destroy(); derr != nil {
			return errors.Join(err, derr)
		}
		return err
	}
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) initialize(cfg InitConfig) error {
	ctx := vr.context
	ctx.FramebufferWidth, ctx.FramebufferHeight = vr.window.FramebufferSize()

	if err := InstanceCreate(ctx, vr.window.VulkanProcAddr(), InstanceConfig{
		AppName:    cfg.AppName,
		Extensions: vr.window.RequiredExtensions(),
		Validation: cfg.Validation,
	}); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.window.CreateSurface(ctx.Instance)
	if err != nil {
		return fmt.Errorf("surface creation: %w", err)
	}
	ctx.Surface = surface

	if err := DeviceCreate(ctx); err != nil {
		return err
	}
	if err := DeviceQuerySwapchainSupport(ctx.Device.PhysicalDevice, ctx.Surface, &ctx.Device.SwapchainSupport); err != nil {
		return err
	}
	if !DeviceDetectDepthFormat(ctx.Device) {
		return fmt.Errorf("%w: no supported depth format", core.ErrNoSuitableDevice)
	}

	if vr.setupExecutor, err = NewOneShotExecutor(ctx, ctx.Device.GraphicsCommandPool); err != nil {
		return err
	}
	if vr.drawExecutor, err = NewOneShotExecutor(ctx, ctx.Device.GraphicsCommandPool); err != nil {
		return err
	}
	vr.uploader = NewUploader(ctx, vr.setupExecutor)

	if ctx.Swapchain, err = SwapchainCreate(ctx, vr.uploader, ctx.FramebufferWidth, ctx.FramebufferHeight); err != nil {
		return err
	}
	extent := ctx.Swapchain.Extent
	if ctx.MainRenderpass, err = RenderpassCreate(ctx, float32(extent.Width), float32(extent.Height), cfg.ClearColor, 1.0, 0); err != nil {
		return err
	}
	if err := ctx.Swapchain.RegenerateFramebuffers(ctx, ctx.MainRenderpass); err != nil {
		return err
	}

	if vr.imageAvailable, err = semaphoreCreate(ctx); err != nil {
		return err
	}
	if vr.renderComplete, err = semaphoreCreate(ctx); err != nil {
		return err
	}

	if vr.indexBuffer, err = UploadBuffer(vr.uploader, "index", QuadIndices, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)); err != nil {
		return err
	}
	if vr.vertexBuffer, err = UploadBuffer(vr.uploader, "vertex", QuadVertices, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)); err != nil {
		return err
	}
	if vr.uniformBuffer, err = UploadBuffer(vr.uploader, "tint", []Tint{DefaultTint}, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)); err != nil {
		return err
	}
	if vr.texture, err = vr.uploader.UploadTexture(cfg.Texture); err != nil {
		return err
	}

	if vr.descriptors, err = DescriptorSetCreate(ctx); err != nil {
		return err
	}
	vr.descriptors.Update(ctx, vr.uniformBuffer, vr.texture)

	vertex, err := NewShaderModule(ctx, vk.ShaderStageVertexBit, cfg.VertexShader)
	if err != nil {
		return err
	}
	vr.shaderStages = append(vr.shaderStages, vertex)
	fragment, err := NewShaderModule(ctx, vk.ShaderStageFragmentBit, cfg.FragmentShader)
	if err != nil {
		return err
	}
	vr.shaderStages = append(vr.shaderStages, fragment)

	stages := []vk.PipelineShaderStageCreateInfo{vertex.ShaderStageCreateInfo, fragment.ShaderStageCreateInfo}
	config := QuadPipelineConfig(ctx.MainRenderpass, []vk.DescriptorSetLayout{vr.descriptors.Layout}, stages, extent)
	if vr.pipeline, err = NewGraphicsPipeline(ctx, config); err != nil {
		return err
	}
	return nil
}

// Render draws and presents one frame. A swapchain that no longer matches
// the surface is recreated and the frame is skipped.
func (vr *VulkanRenderer) Render() error {
	ctx := vr.context
	if vr.window.ConsumeResize() {
		return vr.recreateSwapchain()
	}

	imageIndex, err := ctx.Swapchain.SwapchainAcquireNextImageIndex(ctx, math.MaxUint64, vr.imageAvailable)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return vr.recreateSwapchain()
	}
	if err != nil {
		return err
	}

	framebuffer := ctx.Swapchain.Framebuffers[imageIndex]
	extent := ctx.Swapchain.Extent
	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	err = vr.drawExecutor.Execute(
		ctx.Device.GraphicsQueue,
		[]vk.Semaphore{vr.imageAvailable},
		waitStages,
		[]vk.Semaphore{vr.renderComplete},
		func(cb vk.CommandBuffer) {
			ctx.MainRenderpass.RenderpassBegin(cb, framebuffer.Handle)
			vr.pipeline.Bind(cb)
			vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{{
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MaxDepth: 1.0,
			}})
			vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{{Extent: extent}})
			vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, vr.pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{vr.descriptors.Set}, 0, nil)
			vk.CmdBindVertexBuffers(cb, 0, 1, []vk.Buffer{vr.vertexBuffer.Handle}, []vk.DeviceSize{0})
			vk.CmdBindIndexBuffer(cb, vr.indexBuffer.Handle, 0, vk.IndexTypeUint32)
			vk.CmdDrawIndexed(cb, uint32(len(QuadIndices)), 1, 0, 0, 0)
			ctx.MainRenderpass.RenderpassEnd(cb)
		},
	)
	if err != nil {
		return err
	}

	err = ctx.Swapchain.SwapchainPresent(ctx, ctx.Device.GraphicsQueue, vr.renderComplete, imageIndex)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return vr.recreateSwapchain()
	}
	if err != nil {
		return err
	}
	vr.FrameNumber++
	return nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	ctx := vr.context
	vr.window.WaitWhileMinimized()
	width, height := vr.window.FramebufferSize()
	if width == 0 || height == 0 {
		return nil
	}
	core.LogDebug("Recreating swapchain at %dx%d.", width, height)

	sc, err := ctx.Swapchain.SwapchainRecreate(ctx, vr.uploader, width, height)
	if err != nil {
		return err
	}
	ctx.Swapchain = sc
	ctx.FramebufferWidth, ctx.FramebufferHeight = sc.Extent.Width, sc.Extent.Height
	ctx.MainRenderpass.W = float32(sc.Extent.Width)
	ctx.MainRenderpass.H = float32(sc.Extent.Height)
	return sc.RegenerateFramebuffers(ctx, ctx.MainRenderpass)
}

// Destroy waits for the device to go idle and releases everything in the
// reverse order of creation. It can be called more than once.
func (vr *VulkanRenderer) Destroy() error {
	if vr.destroyed {
		return nil
	}
	vr.destroyed = true
	ctx := vr.context

	var errs []error
	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		if res := vk.DeviceWaitIdle(ctx.Device.LogicalDevice); res != vk.Success {
			errs = append(errs, resultError("vkDeviceWaitIdle", res))
		}

		if vr.pipeline != nil {
			vr.pipeline.Destroy(ctx)
		}
		for _, stage := range vr.shaderStages {
			stage.Destroy(ctx)
		}
		if vr.descriptors != nil {
			vr.descriptors.Destroy(ctx)
		}
		if vr.texture != nil {
			vr.texture.Destroy(ctx)
		}
		for _, b := range []*VulkanBuffer{vr.uniformBuffer, vr.vertexBuffer, vr.indexBuffer} {
			if b != nil {
				b.Destroy(ctx)
			}
		}
		semaphoreDestroy(ctx, &vr.renderComplete)
		semaphoreDestroy(ctx, &vr.imageAvailable)

		if ctx.Swapchain != nil {
			ctx.Swapchain.SwapchainDestroy(ctx)
			ctx.Swapchain = nil
		}
		if ctx.MainRenderpass != nil {
			ctx.MainRenderpass.RenderpassDestroy(ctx)
			ctx.MainRenderpass = nil
		}
		for _, e := range []*OneShotExecutor{vr.drawExecutor, vr.setupExecutor} {
			if e != nil {
				if err := e.Release(); err != nil {
					errs = append(errs, err)
				}
			}
		}
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(ctx)
	}

	var nilSurface vk.Surface
	if ctx.Surface != nilSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = nilSurface
	}
	InstanceDestroy(ctx)

	return errors.Join(errs...)
}

func semaphoreCreate(context *VulkanContext) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &info, context.Allocator, &semaphore); res != vk.Success {
		err := resultError("vkCreateSemaphore", res)
		core.LogError(err.Error())
		return semaphore, err
	}
	return semaphore, nil
}

func semaphoreDestroy(context *VulkanContext, semaphore *vk.Semaphore) {
	var nilSemaphore vk.Semaphore
	if *semaphore != nilSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, *semaphore, context.Allocator)
		*semaphore = nilSemaphore
	}
}
