package vulkan

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cozy/engine/core"
)

// fakeDriver simulates a queue: a submission completes asynchronously and
// signals the fence afterwards.
type fakeDriver struct {
	mu       sync.Mutex
	ops      []string
	signaled chan struct{}
	delay    time.Duration

	gpuDone   atomic.Int32
	submitted []vk.SubmitInfo
	failOn    string
	freed     bool
	destroyed bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{delay: 10 * time.Millisecond}
}

func (d *fakeDriver) log(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, op)
	if op == d.failOn {
		return errors.New(op + " failed")
	}
	return nil
}

func (d *fakeDriver) allocateCommandBuffer() (*VulkanCommandBuffer, error) {
	return &VulkanCommandBuffer{State: COMMAND_BUFFER_STATE_READY}, d.log("allocate")
}

func (d *fakeDriver) freeCommandBuffer(cb *VulkanCommandBuffer) {
	d.freed = true
	_ = d.log("free")
}

func (d *fakeDriver) createFence(signaled bool) (*VulkanFence, error) {
	d.signaled = make(chan struct{})
	if signaled {
		close(d.signaled)
	}
	return &VulkanFence{IsSignaled: signaled}, d.log("create-fence")
}

func (d *fakeDriver) destroyFence(f *VulkanFence) {
	d.destroyed = true
	_ = d.log("destroy-fence")
}

func (d *fakeDriver) waitFence(f *VulkanFence) error {
	if err := d.log("wait"); err != nil {
		return err
	}
	<-d.signaled
	return nil
}

func (d *fakeDriver) resetFence(f *VulkanFence) error {
	if err := d.log("reset-fence"); err != nil {
		return err
	}
	d.signaled = make(chan struct{})
	return nil
}

func (d *fakeDriver) resetCommandBuffer(cb *VulkanCommandBuffer) error {
	return d.log("reset-cb")
}

func (d *fakeDriver) beginCommandBuffer(cb *VulkanCommandBuffer) error {
	return d.log("begin")
}

func (d *fakeDriver) endCommandBuffer(cb *VulkanCommandBuffer) error {
	return d.log("end")
}

func (d *fakeDriver) submit(queue vk.Queue, info vk.SubmitInfo, fence *VulkanFence) error {
	if err := d.log("submit"); err != nil {
		return err
	}
	d.mu.Lock()
	d.submitted = append(d.submitted, info)
	d.mu.Unlock()

	done := d.signaled
	go func() {
		time.Sleep(d.delay)
		d.gpuDone.Add(1)
		close(done)
	}()
	return nil
}

func (d *fakeDriver) opsSince(n int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ops[n:]...)
}

func TestExecutorOrderAndCompletion(t *testing.T) {
	d := newFakeDriver()
	e, err := newOneShotExecutor(d)
	require.NoError(t, err)
	setup := len(d.ops)

	for i := 1; i <= 2; i++ {
		err := e.Execute(nil, nil, nil, nil, func(cb vk.CommandBuffer) {
			_ = d.log("record")
		})
		require.NoError(t, err)
		assert.EqualValues(t, i, d.gpuDone.Load(), "Execute returned before the fence signaled")
	}

	want := []string{"wait", "reset-fence", "reset-cb", "begin", "record", "end", "submit", "wait"}
	assert.Equal(t, append(append([]string{}, want...), want...), d.opsSince(setup))
	assert.Equal(t, COMMAND_BUFFER_STATE_SUBMITTED, e.cb.State)
}

func TestExecutorSubmitInfo(t *testing.T) {
	d := newFakeDriver()
	e, err := newOneShotExecutor(d)
	require.NoError(t, err)

	waits := []vk.Semaphore{nil}
	stages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	signals := []vk.Semaphore{nil}
	require.NoError(t, e.Execute(nil, waits, stages, signals, func(vk.CommandBuffer) {}))

	require.Len(t, d.submitted, 1)
	info := d.submitted[0]
	assert.EqualValues(t, 1, info.CommandBufferCount)
	assert.EqualValues(t, 1, info.WaitSemaphoreCount)
	assert.Equal(t, stages, info.PWaitDstStageMask)
	assert.EqualValues(t, 1, info.SignalSemaphoreCount)

	err = e.Execute(nil, waits, nil, nil, func(vk.CommandBuffer) {})
	assert.Error(t, err, "mismatched wait stages")
}

func TestExecutorRejectsReentrantUse(t *testing.T) {
	d := newFakeDriver()
	e, err := newOneShotExecutor(d)
	require.NoError(t, err)

	var inner error
	require.NoError(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {
		inner = e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {})
	}))
	assert.ErrorIs(t, inner, core.ErrExecutorBusy)

	// usable again once the first batch finished
	assert.NoError(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {}))
}

func TestExecutorRejectsConcurrentUse(t *testing.T) {
	d := newFakeDriver()
	d.delay = 100 * time.Millisecond
	e, err := newOneShotExecutor(d)
	require.NoError(t, err)

	recording := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		errs <- e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) { close(recording) })
	}()
	<-recording

	assert.ErrorIs(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {}), core.ErrExecutorBusy)
	assert.ErrorIs(t, e.Release(), core.ErrExecutorBusy)
	require.NoError(t, <-errs)
}

func TestExecutorRelease(t *testing.T) {
	d := newFakeDriver()
	e, err := newOneShotExecutor(d)
	require.NoError(t, err)
	require.NoError(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {}))

	require.NoError(t, e.Release())
	assert.True(t, d.freed)
	assert.True(t, d.destroyed)

	assert.NoError(t, e.Release(), "second release is a no-op")
	assert.ErrorIs(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {}), core.ErrExecutorReleased)
}

// finishes fails the test when fn does not return within a second.
func finishes(t *testing.T, what string, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		require.FailNow(t, what+" did not return")
		return nil
	}
}

func TestExecutorPropagatesFailures(t *testing.T) {
	for _, op := range []string{"reset-fence", "reset-cb", "begin", "end", "submit"} {
		t.Run(op, func(t *testing.T) {
			d := newFakeDriver()
			e, err := newOneShotExecutor(d)
			require.NoError(t, err)
			d.failOn = op

			err = e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {})
			assert.ErrorContains(t, err, op)
			assert.Equal(t, executorIdle, e.state)

			// the fence was never submitted, so the next batch must not wait on it
			d.failOn = ""
			err = finishes(t, "Execute after "+op+" failure", func() error {
				return e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {})
			})
			require.NoError(t, err)
			assert.EqualValues(t, 1, d.gpuDone.Load())
		})
	}
}

func TestExecutorReleaseAfterFailure(t *testing.T) {
	for _, op := range []string{"reset-fence", "reset-cb", "begin", "end", "submit"} {
		t.Run(op, func(t *testing.T) {
			d := newFakeDriver()
			e, err := newOneShotExecutor(d)
			require.NoError(t, err)
			d.failOn = op

			require.Error(t, e.Execute(nil, nil, nil, nil, func(vk.CommandBuffer) {}))
			require.NoError(t, finishes(t, "Release after "+op+" failure", e.Release))
			assert.True(t, d.freed)
			assert.True(t, d.destroyed)
		})
	}
}
