package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

const portabilityEnumerationBit = 0x00000001

type InstanceConfig struct {
	AppName string
	// Extensions reported by the window system for surface creation.
	Extensions []string
	Validation bool
}

// InstanceCreate loads the Vulkan entry points through procAddr and creates
// the instance, and the debug report callback when validation is enabled.
func InstanceCreate(context *VulkanContext, procAddr unsafe.Pointer, cfg InstanceConfig) error {
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: 0,
		PApplicationName:   VulkanSafeString(cfg.AppName),
		PEngineName:        VulkanSafeString(cfg.AppName),
		EngineVersion:      0,
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := slices.Clone(cfg.Extensions)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration")
		createInfo.Flags |= portabilityEnumerationBit
	}
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range extensions {
		core.LogDebug("instance extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	if cfg.Validation {
		available, err := availableLayers()
		if err != nil {
			return err
		}
		if missing := MissingLayers([]string{validationLayer}, available); len(missing) > 0 {
			core.LogError("required validation layers are missing: %v", missing)
			return fmt.Errorf("%w: %v", core.ErrValidationLayerMissing, missing)
		}
		core.LogDebug("All required validation layers are present.")
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = VulkanSafeStrings([]string{validationLayer})
	}

	if res := vk.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		err := resultError("vkCreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if cfg.Validation {
		return debugCallbackCreate(context)
	}
	return nil
}

func InstanceDestroy(context *VulkanContext) {
	if context.debugCallback != nilDebugCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(context.Instance, context.debugCallback, context.Allocator)
		context.debugCallback = nilDebugCallback
	}
	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
}

// MissingLayers returns the required layers absent from available, in the
// order they were required.
func MissingLayers(required, available []string) []string {
	var missing []string
	for _, name := range required {
		if !slices.Contains(available, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func availableLayers() ([]string, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateInstanceLayerProperties", res)
	}
	props := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, props); res != vk.Success {
		return nil, resultError("vkEnumerateInstanceLayerProperties", res)
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vk.ToString(props[i].LayerName[:]))
	}
	return names, nil
}
