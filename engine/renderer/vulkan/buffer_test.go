package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rgb struct {
	R, G, B uint8
}

func TestCopyAlignedPacked(t *testing.T) {
	dst := make([]byte, 6)
	n, err := CopyAligned(dst, []uint16{0x0201, 0x0403, 0x0605}, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)
}

func TestCopyAlignedPadding(t *testing.T) {
	dst := make([]byte, 16)
	for i := range dst {
		dst[i] = 0xff
	}
	src := []rgb{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}

	n, err := CopyAligned(dst, src, 4)
	require.NoError(t, err)
	// the last element is not padded
	assert.Equal(t, 11, n)
	assert.Equal(t, []byte{
		1, 2, 3, 0,
		4, 5, 6, 0,
		7, 8, 9, 0xff,
		0xff, 0xff, 0xff, 0xff,
	}, dst)

	back, err := ReadAligned[rgb](dst, len(src), 4)
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestCopyAlignedDestinationTooSmall(t *testing.T) {
	_, err := CopyAligned(make([]byte, 10), []rgb{{}, {}, {}}, 4)
	assert.Error(t, err)

	_, err = ReadAligned[rgb](make([]byte, 10), 3, 4)
	assert.Error(t, err)
}

func TestCopyAlignedEmpty(t *testing.T) {
	n, err := CopyAligned(nil, []Vertex{}, 16)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyAlignedQuadGeometry(t *testing.T) {
	dst := make([]byte, 4*int(vertexStride))
	n, err := CopyAligned(dst, QuadVertices, 4)
	require.NoError(t, err)
	assert.Equal(t, len(dst), n)

	back, err := ReadAligned[Vertex](dst, len(QuadVertices), 4)
	require.NoError(t, err)
	assert.Equal(t, QuadVertices, back)

	tint := make([]byte, 16)
	_, err = CopyAligned(tint, []Tint{DefaultTint}, 4)
	require.NoError(t, err)
	got, err := ReadAligned[Tint](tint, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, DefaultTint, got[0])
}
