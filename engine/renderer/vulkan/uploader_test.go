package vulkan

import (
	"errors"
	"fmt"
	"image"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cozy/engine/core"
)

func TestSamplerInfo(t *testing.T) {
	info := samplerInfo()
	assert.Equal(t, vk.FilterLinear, info.MagFilter)
	assert.Equal(t, vk.FilterLinear, info.MinFilter)
	assert.Equal(t, vk.SamplerMipmapModeLinear, info.MipmapMode)
	for _, mode := range []vk.SamplerAddressMode{info.AddressModeU, info.AddressModeV, info.AddressModeW} {
		assert.Equal(t, vk.SamplerAddressModeMirroredRepeat, mode)
	}
	assert.Equal(t, float32(1), info.MaxAnisotropy)
	assert.Equal(t, vk.BorderColorFloatOpaqueWhite, info.BorderColor)
	assert.Equal(t, vk.CompareOpNever, info.CompareOp)
}

func TestQuadGeometry(t *testing.T) {
	assert.EqualValues(t, 24, vertexStride)
	assert.Equal(t, []uint32{0, 1, 2, 2, 3, 0}, QuadIndices)
	assert.Len(t, QuadVertices, 4)
	assert.Equal(t, Tint{1, 1, 1, 0}, DefaultTint)
}

// fakeTextureDevice records the upload steps. Batches go through a real
// OneShotExecutor backed by fakeDriver.
type fakeTextureDevice struct {
	executor *OneShotExecutor
	ops      []string
	failOn   string

	staging          *VulkanBuffer
	stagingDestroyed int
	imageDestroyed   int
}

func (d *fakeTextureDevice) step(op string) error {
	d.ops = append(d.ops, op)
	if op == d.failOn {
		return errors.New(op + " failed")
	}
	return nil
}

func (d *fakeTextureDevice) stagingBuffer(pix []byte) (*VulkanBuffer, error) {
	if err := d.step("staging"); err != nil {
		return nil, err
	}
	d.staging = &VulkanBuffer{Size: uint64(len(pix))}
	return d.staging, nil
}

func (d *fakeTextureDevice) destroyBuffer(b *VulkanBuffer) {
	if b == d.staging {
		d.stagingDestroyed++
	}
	_ = d.step("destroy-staging")
}

func (d *fakeTextureDevice) createImage(width, height uint32) (*VulkanImage, error) {
	if err := d.step(fmt.Sprintf("image %dx%d", width, height)); err != nil {
		return nil, err
	}
	return &VulkanImage{Width: width, Height: height, Format: vk.FormatR8g8b8a8Unorm}, nil
}

func (d *fakeTextureDevice) destroyImage(img *VulkanImage) {
	d.imageDestroyed++
	_ = d.step("destroy-image")
}

func (d *fakeTextureDevice) createView(img *VulkanImage, aspect vk.ImageAspectFlags) error {
	return d.step("view")
}

func (d *fakeTextureDevice) createSampler() (vk.Sampler, error) {
	var sampler vk.Sampler
	return sampler, d.step("sampler")
}

func (d *fakeTextureDevice) execute(record func(cb vk.CommandBuffer)) error {
	_ = d.step("execute")
	return d.executor.Execute(nil, nil, nil, nil, record)
}

func (d *fakeTextureDevice) transition(cb vk.CommandBuffer, img *VulkanImage, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) error {
	if _, err := layoutTransition(oldLayout, newLayout); err != nil {
		return err
	}
	return d.step(fmt.Sprintf("transition %d->%d", oldLayout, newLayout))
}

func (d *fakeTextureDevice) copyBufferToImage(cb vk.CommandBuffer, src *VulkanBuffer, dst *VulkanImage, width, height uint32) {
	_ = d.step(fmt.Sprintf("copy %dx%d", width, height))
}

func newTestUploader(t *testing.T) (*Uploader, *fakeTextureDevice, *fakeDriver) {
	t.Helper()
	driver := newFakeDriver()
	driver.delay = 0
	executor, err := newOneShotExecutor(driver)
	require.NoError(t, err)
	device := &fakeTextureDevice{executor: executor}
	return &Uploader{executor: executor, device: device}, device, driver
}

func TestUploadTextureSequence(t *testing.T) {
	u, device, driver := newTestUploader(t)

	tex, err := u.UploadTexture(image.NewRGBA(image.Rect(0, 0, 4, 2)))
	require.NoError(t, err)
	require.NotNil(t, tex.Image)
	assert.EqualValues(t, 4, tex.Image.Width)
	assert.EqualValues(t, 2, tex.Image.Height)

	toDst := fmt.Sprintf("transition %d->%d", vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	toShader := fmt.Sprintf("transition %d->%d", vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	assert.Equal(t, []string{
		"staging", "image 4x2", "execute",
		toDst, "copy 4x2", toShader,
		"view", "sampler", "destroy-staging",
	}, device.ops)
	assert.EqualValues(t, 32, device.staging.Size)
	assert.Equal(t, 1, device.stagingDestroyed)
	assert.Zero(t, device.imageDestroyed)
	assert.EqualValues(t, 1, driver.gpuDone.Load(), "the copy was submitted and waited on")
}

func TestUploadTextureReleasesStaging(t *testing.T) {
	for _, op := range []string{"image 4x4", "view", "sampler"} {
		t.Run(op, func(t *testing.T) {
			u, device, _ := newTestUploader(t)
			device.failOn = op

			_, err := u.UploadTexture(image.NewRGBA(image.Rect(0, 0, 4, 4)))
			assert.ErrorContains(t, err, op)
			assert.Equal(t, 1, device.stagingDestroyed)
			if op != "image 4x4" {
				assert.Equal(t, 1, device.imageDestroyed)
			}
		})
	}
}

func TestUploadTextureReleasesStagingWhenBatchFails(t *testing.T) {
	for _, op := range []string{"begin", "submit"} {
		t.Run(op, func(t *testing.T) {
			u, device, driver := newTestUploader(t)
			driver.failOn = op

			_, err := u.UploadTexture(image.NewRGBA(image.Rect(0, 0, 4, 4)))
			assert.ErrorContains(t, err, op)
			assert.Equal(t, 1, device.stagingDestroyed)
			assert.Equal(t, 1, device.imageDestroyed)
			assert.NotContains(t, device.ops, "view")
		})
	}
}

func TestUploadRejectsEmptyInput(t *testing.T) {
	u, device, _ := newTestUploader(t)

	_, err := u.UploadTexture(image.NewRGBA(image.Rect(0, 0, 0, 8)))
	assert.ErrorIs(t, err, core.ErrEmptyUpload)
	_, err = u.UploadTexture(nil)
	assert.ErrorIs(t, err, core.ErrEmptyUpload)
	assert.Empty(t, device.ops, "nothing reaches the device")

	_, err = UploadBuffer(u, "index", []uint32{}, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	assert.ErrorIs(t, err, core.ErrEmptyUpload)
	_, err = UploadBuffer[Vertex](u, "vertex", nil, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	assert.ErrorIs(t, err, core.ErrEmptyUpload)
}
