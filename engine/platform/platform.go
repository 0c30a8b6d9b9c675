package platform

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the player window. All methods must be called from the main
// goroutine.
type Platform struct {
	Window *glfw.Window

	closeRequested atomic.Bool
	resized        atomic.Bool
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(title string, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errVulkanUnsupported
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetCloseCallback(func(w *glfw.Window) {
		p.closeRequested.Store(true)
	})
	p.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		p.resized.Store(true)
	})
	core.LogDebug("window %q created (%dx%d)", title, width, height)
	return nil
}

// VulkanProcAddr hands the loader entry point found by GLFW to the Vulkan
// bindings.
func (p *Platform) VulkanProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// RequiredExtensions lists the instance extensions needed to present to the
// window.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		var none vk.Surface
		return none, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferSize reports the drawable size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// ConsumeResize reports whether the framebuffer changed size since the last
// call.
func (p *Platform) ConsumeResize() bool {
	return p.resized.Swap(false)
}

// WaitWhileMinimized blocks on window events until the framebuffer has a
// non-zero size or the window is asked to close.
func (p *Platform) WaitWhileMinimized() {
	for !p.CloseRequested() {
		if w, h := p.FramebufferSize(); w > 0 && h > 0 {
			return
		}
		glfw.WaitEvents()
	}
}

func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

// CloseRequested is true once the user asked the window to close.
func (p *Platform) CloseRequested() bool {
	return p.closeRequested.Load() || (p.Window != nil && p.Window.ShouldClose())
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}
