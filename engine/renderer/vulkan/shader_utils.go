package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderModule wraps SPIR-V words into a module ready to be used as a
// pipeline stage with entry point "main".
func NewShaderModule(context *VulkanContext, stage vk.ShaderStageFlagBits, code []uint32) (*VulkanShaderStage, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: empty module", core.ErrInvalidSPIRV)
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}

	var module vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
		err := resultError("vkCreateShaderModule", res)
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanShaderStage{
		Handle: module,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != nilShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nilShaderModule
	}
}

var nilShaderModule vk.ShaderModule
