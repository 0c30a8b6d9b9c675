package loaders

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeShader
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	}
	return "none"
}

// Resource is what a loader hands back: Data is []uint32 for shaders and
// *image.RGBA for images.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}
