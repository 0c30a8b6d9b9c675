package platform

import "errors"

var errVulkanUnsupported = errors.New("glfw: vulkan loader not found")
