package loaders

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spaghettifunk/cozy/engine/core"
)

const spirvMagic uint32 = 0x07230203

type ShaderLoader struct{}

func (sl *ShaderLoader) Load(name string, r io.Reader) (*Resource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	code, err := BytesToBytecode(data)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	return &Resource{
		Name:     name,
		FullPath: name,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     code,
	}, nil
}

// BytesToBytecode turns a SPIR-V module into the little-endian words the
// driver consumes.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 20 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", core.ErrInvalidSPIRV, len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("%w: magic %#08x", core.ErrInvalidSPIRV, byteCode[0])
	}
	return byteCode, nil
}
