package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

func VulkanResultString(result vk.Result, getExtended bool) string {
	name, extended := resultNames(result)
	if getExtended {
		return name + " " + extended
	}
	return name
}

func resultNames(result vk.Result) (string, string) {
	switch result {
	case vk.Success:
		return "VK_SUCCESS", "Command successfully completed"
	case vk.NotReady:
		return "VK_NOT_READY", "A fence or query has not yet completed"
	case vk.Timeout:
		return "VK_TIMEOUT", "A wait operation has not completed in the specified time"
	case vk.Incomplete:
		return "VK_INCOMPLETE", "A return array was too small for the result"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly, but can still be used to present to the surface successfully."
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed."
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed."
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed for implementation-specific reasons."
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost."
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed."
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded."
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported."
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported."
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver or is otherwise incompatible for implementation-specific reasons."
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created."
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device."
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available."
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use by Vulkan or another API in a manner which prevents it from being used again."
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR", "A surface has changed in such a way that it is no longer compatible with the swapchain."
	case vk.ErrorValidationFailed:
		return "VK_ERROR_VALIDATION_FAILED_EXT", "A command failed because invalid usage was detected by the implementation or a validation-layer."
	}
	return fmt.Sprintf("VkResult(%d)", int32(result)), "An unknown error has occurred."
}

func VulkanResultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset, vk.Incomplete, vk.Suboptimal:
		return true
	}
	return false
}

// resultError turns a failed call into an error naming the operation.
func resultError(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	return fmt.Errorf("%s failed with %s: %w", op, VulkanResultString(result, false), vk.Error(result))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}
