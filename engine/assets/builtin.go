package assets

import "embed"

//go:embed builtin
var builtinFS embed.FS

const builtinRoot = "builtin"

const (
	QuadVertexShader   = "shaders/quad.vert.spv"
	QuadFragmentShader = "shaders/quad.frag.spv"
	DefaultTexture     = "textures/cozy.png"
)
