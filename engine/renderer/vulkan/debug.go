package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

var nilDebugCallback vk.DebugReportCallback

func debugCallbackCreate(context *VulkanContext) error {
	core.LogDebug("Creating Vulkan debugger...")
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(context.Instance, &createInfo, context.Allocator, &dbg); res != vk.Success {
		err := resultError("vkCreateDebugReportCallback", res)
		core.LogError(err.Error())
		return err
	}
	context.debugCallback = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

// FormatDebugReport renders a validation message as
//
//	SEVERITY:
//	CATEGORY [prefix (code)] : message
//
// and returns the log level it should be reported at.
func FormatDebugReport(flags vk.DebugReportFlags, code int32, prefix, message string) (log.Level, string) {
	level, severity, category := log.DebugLevel, "VERBOSE", "GENERAL"
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		level, severity, category = log.ErrorLevel, "ERROR", "VALIDATION"
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		level, severity, category = log.WarnLevel, "WARNING", "VALIDATION"
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		level, severity, category = log.WarnLevel, "WARNING", "PERFORMANCE"
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		level, severity = log.InfoLevel, "INFO"
	}
	return level, fmt.Sprintf("%s:\n%s [%s (%d)] : %s", severity, category, prefix, code, message)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	level, text := FormatDebugReport(flags, messageCode, pLayerPrefix, pMessage)
	switch level {
	case log.ErrorLevel:
		core.LogError("%s", text)
	case log.WarnLevel:
		core.LogWarn("%s", text)
	case log.InfoLevel:
		core.LogInfo("%s", text)
	default:
		core.LogDebug("%s", text)
	}
	return vk.Bool32(vk.False)
}
