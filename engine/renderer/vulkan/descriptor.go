package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

const (
	uniformBinding = 0
	samplerBinding = 1
)

// VulkanDescriptorSet holds the single set the quad is drawn with: the tint
// uniform and the texture sampler. It is written once after allocation.
type VulkanDescriptorSet struct {
	Layout vk.DescriptorSetLayout
	Pool   vk.DescriptorPool
	Set    vk.DescriptorSet
}

func descriptorSetLayoutBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{
		{
			Binding:         uniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
		{
			Binding:         samplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
}

func descriptorPoolSizes() []vk.DescriptorPoolSize {
	return []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1},
	}
}

func DescriptorSetLayoutCreate(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := descriptorSetLayoutBindings()
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout); res != vk.Success {
		err := resultError("vkCreateDescriptorSetLayout", res)
		core.LogError(err.Error())
		return layout, err
	}
	return layout, nil
}

func DescriptorPoolCreate(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := descriptorPoolSizes()
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		err := resultError("vkCreateDescriptorPool", res)
		core.LogError(err.Error())
		return pool, err
	}
	return pool, nil
}

// DescriptorSetCreate builds the layout, the pool and allocates the set.
func DescriptorSetCreate(context *VulkanContext) (*VulkanDescriptorSet, error) {
	ds := &VulkanDescriptorSet{}

	layout, err := DescriptorSetLayoutCreate(context)
	if err != nil {
		return nil, err
	}
	ds.Layout = layout

	pool, err := DescriptorPoolCreate(context)
	if err != nil {
		ds.Destroy(context)
		return nil, err
	}
	ds.Pool = pool

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     ds.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{ds.Layout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &set); res != vk.Success {
		err := resultError("vkAllocateDescriptorSets", res)
		core.LogError(err.Error())
		ds.Destroy(context)
		return nil, err
	}
	ds.Set = set
	return ds, nil
}

// Update points the set at the uniform buffer and the texture.
func (ds *VulkanDescriptorSet) Update(context *VulkanContext, uniform *VulkanBuffer, texture *VulkanTexture) {
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.Set,
			DstBinding:      uniformBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniform.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(uniform.Size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.Set,
			DstBinding:      samplerBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     texture.Sampler,
				ImageView:   texture.Image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

func (ds *VulkanDescriptorSet) Destroy(context *VulkanContext) {
	var nilPool vk.DescriptorPool
	var nilLayout vk.DescriptorSetLayout
	// Destroying the pool frees the set.
	if ds.Pool != nilPool {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, ds.Pool, context.Allocator)
		ds.Pool = nilPool
	}
	if ds.Layout != nilLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, ds.Layout, context.Allocator)
		ds.Layout = nilLayout
	}
	var nilSet vk.DescriptorSet
	ds.Set = nilSet
}
