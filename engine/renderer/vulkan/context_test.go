package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cozy/engine/core"
)

func memoryProps(flags ...vk.MemoryPropertyFlagBits) *vk.PhysicalDeviceMemoryProperties {
	props := &vk.PhysicalDeviceMemoryProperties{MemoryTypeCount: uint32(len(flags))}
	for i, f := range flags {
		props.MemoryTypes[i].PropertyFlags = vk.MemoryPropertyFlags(f)
	}
	return props
}

func TestSelectMemoryType(t *testing.T) {
	hostVisible := vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	props := memoryProps(
		vk.MemoryPropertyDeviceLocalBit,
		vk.MemoryPropertyHostVisibleBit,
		hostVisible,
		hostVisible|vk.MemoryPropertyHostCachedBit,
	)

	t.Run("lowest matching index", func(t *testing.T) {
		index, err := SelectMemoryType(props, 0b1111, vk.MemoryPropertyFlags(hostVisible))
		require.NoError(t, err)
		assert.EqualValues(t, 2, index)
	})

	t.Run("superset of flags matches", func(t *testing.T) {
		index, err := SelectMemoryType(props, 0b1000, vk.MemoryPropertyFlags(hostVisible))
		require.NoError(t, err)
		assert.EqualValues(t, 3, index)
	})

	t.Run("type bits restrict candidates", func(t *testing.T) {
		index, err := SelectMemoryType(props, 0b0010, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
		require.NoError(t, err)
		assert.EqualValues(t, 1, index)
	})

	t.Run("no flags picks first allowed type", func(t *testing.T) {
		index, err := SelectMemoryType(props, 0b0100, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, index)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := SelectMemoryType(props, 0b0001, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
		assert.ErrorIs(t, err, core.ErrNoSuitableMemoryType)
	})

	t.Run("bits beyond the type count are ignored", func(t *testing.T) {
		_, err := SelectMemoryType(memoryProps(vk.MemoryPropertyDeviceLocalBit), 0b110, 0)
		assert.ErrorIs(t, err, core.ErrNoSuitableMemoryType)
	})
}
