package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Vertex is the layout consumed by the quad vertex shader.
type Vertex struct {
	Pos [4]float32
	UV  [2]float32
}

var vertexStride = uint32(unsafe.Sizeof(Vertex{}))

var QuadVertices = []Vertex{
	{Pos: [4]float32{-1.0, -1.0, 0.0, 1.0}, UV: [2]float32{0.0, 0.0}},
	{Pos: [4]float32{-1.0, 1.0, 0.0, 1.0}, UV: [2]float32{0.0, 1.0}},
	{Pos: [4]float32{1.0, 1.0, 0.0, 1.0}, UV: [2]float32{1.0, 1.0}},
	{Pos: [4]float32{1.0, -1.0, 0.0, 1.0}, UV: [2]float32{1.0, 0.0}},
}

var QuadIndices = []uint32{0, 1, 2, 2, 3, 0}

// Tint is multiplied with the sampled texel in the fragment shader.
type Tint [4]float32

var DefaultTint = Tint{1.0, 1.0, 1.0, 0.0}

func vertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Location: 0,
			Binding:  0,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Location: 1,
			Binding:  0,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.UV)),
		},
	}
}
