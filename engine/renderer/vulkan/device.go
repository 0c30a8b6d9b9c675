package vulkan

import (
	"fmt"
	"slices"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32

	GraphicsQueue       vk.Queue
	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

// PhysicalDeviceInfo is what device selection needs to know about an
// adapter. All structures are already dereferenced.
type PhysicalDeviceInfo struct {
	Handle        vk.PhysicalDevice
	Name          string
	Properties    vk.PhysicalDeviceProperties
	Memory        vk.PhysicalDeviceMemoryProperties
	QueueFamilies []vk.QueueFamilyProperties
}

// PresentSupportFunc reports whether a queue family of dev can present to
// the window surface.
type PresentSupportFunc func(dev *PhysicalDeviceInfo, family uint32) (bool, error)

// SelectQueueFamily walks devices and their queue families in order and
// returns the first family that supports graphics and can present.
// Presentation is only queried for graphics capable families.
func SelectQueueFamily(devices []PhysicalDeviceInfo, supportsPresent PresentSupportFunc) (int, uint32, error) {
	for d := range devices {
		for f, family := range devices[d].QueueFamilies {
			if vk.QueueFlagBits(family.QueueFlags)&vk.QueueGraphicsBit == 0 {
				continue
			}
			ok, err := supportsPresent(&devices[d], uint32(f))
			if err != nil {
				return 0, 0, err
			}
			if ok {
				return d, uint32(f), nil
			}
		}
	}
	return 0, 0, core.ErrNoSuitableDevice
}

func DeviceCreate(context *VulkanContext) error {
	devices, err := enumeratePhysicalDevices(context.Instance)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return core.ErrNoSuitableDevice
	}

	surface := context.Surface
	deviceIndex, family, err := SelectQueueFamily(devices, func(dev *PhysicalDeviceInfo, family uint32) (bool, error) {
		var supported vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(dev.Handle, family, surface, &supported); res != vk.Success {
			return false, resultError("vkGetPhysicalDeviceSurfaceSupport", res)
		}
		return supported == vk.True, nil
	})
	if err != nil {
		core.LogError("No physical devices were found which meet the requirements: %s", err)
		return err
	}
	selected := devices[deviceIndex]
	logDeviceInfo(&selected, family)

	device := &VulkanDevice{
		PhysicalDevice:     selected.Handle,
		GraphicsQueueIndex: int32(family),
		Properties:         selected.Properties,
		Memory:             selected.Memory,
	}
	context.Device = device

	extensions := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	if slices.Contains(available, portabilitySubsetExtension) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensions = append(extensions, portabilitySubsetExtension)
	}

	features := vk.PhysicalDeviceFeatures{
		ShaderClipDistance: vk.True,
	}
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &createInfo, context.Allocator, &logical); res != vk.Success {
		err := resultError("vkCreateDevice", res)
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, family, 0, &queue)
	device.GraphicsQueue = queue

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := resultError("vkCreateCommandPool", res)
		core.LogError(err.Error())
		return err
	}
	device.GraphicsCommandPool = pool
	core.LogDebug("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil

	if device.GraphicsCommandPool != nilCommandPool {
		core.LogDebug("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nilCommandPool
	}
	if device.LogicalDevice != nil {
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
}

var nilCommandPool vk.CommandPool

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, info *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	info.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfaceFormats", res)
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	info.PresentModes = make([]vk.PresentMode, modeCount)
	if modeCount > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, info.PresentModes); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
		}
	}

	if len(info.Formats) == 0 || len(info.PresentModes) == 0 {
		return fmt.Errorf("%w: surface reports no formats or present modes", core.ErrNoSuitableDevice)
	}
	return nil
}

// depthFormatCandidates are tried in order; D16 first since depth is only
// used to order a single quad.
var depthFormatCandidates = []vk.Format{
	vk.FormatD16Unorm,
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthFormatCandidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags || properties.LinearTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	device.DepthFormat = vk.FormatUndefined
	return false
}

func enumeratePhysicalDevices(instance vk.Instance) ([]PhysicalDeviceInfo, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}
	handles := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, handles); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}

	devices := make([]PhysicalDeviceInfo, 0, count)
	for _, handle := range handles {
		info := PhysicalDeviceInfo{Handle: handle}

		vk.GetPhysicalDeviceProperties(handle, &info.Properties)
		info.Properties.Deref()
		info.Properties.Limits.Deref()
		info.Name = vk.ToString(info.Properties.DeviceName[:])

		vk.GetPhysicalDeviceMemoryProperties(handle, &info.Memory)
		info.Memory.Deref()
		for i := range info.Memory.MemoryTypes {
			info.Memory.MemoryTypes[i].Deref()
		}
		for i := range info.Memory.MemoryHeaps {
			info.Memory.MemoryHeaps[i].Deref()
		}

		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, nil)
		info.QueueFamilies = make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, info.QueueFamilies)
		for i := range info.QueueFamilies {
			info.QueueFamilies[i].Deref()
		}

		devices = append(devices, info)
	}
	return devices, nil
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	props := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, vk.ToString(props[i].ExtensionName[:]))
	}
	return names, nil
}

func logDeviceInfo(dev *PhysicalDeviceInfo, family uint32) {
	core.LogInfo("Selected device: '%s' (queue family %d).", dev.Name, family)
	switch dev.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	api := vk.Version(dev.Properties.ApiVersion)
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())

	for i := uint32(0); i < dev.Memory.MemoryHeapCount; i++ {
		heap := dev.Memory.MemoryHeaps[i]
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogDebug("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogDebug("Shared System memory: %.2f GiB", gib)
		}
	}
}
