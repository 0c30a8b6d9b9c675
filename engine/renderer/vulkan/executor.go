package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cozy/engine/core"
)

// commandDriver is the slice of the Vulkan API the executor relies on.
type commandDriver interface {
	allocateCommandBuffer() (*VulkanCommandBuffer, error)
	freeCommandBuffer(cb *VulkanCommandBuffer)
	createFence(signaled bool) (*VulkanFence, error)
	destroyFence(f *VulkanFence)
	waitFence(f *VulkanFence) error
	resetFence(f *VulkanFence) error
	resetCommandBuffer(cb *VulkanCommandBuffer) error
	beginCommandBuffer(cb *VulkanCommandBuffer) error
	endCommandBuffer(cb *VulkanCommandBuffer) error
	submit(queue vk.Queue, info vk.SubmitInfo, fence *VulkanFence) error
}

type executorState int

const (
	executorIdle executorState = iota
	executorExecuting
	executorReleased
)

// OneShotExecutor records a batch of commands into its own command buffer,
// submits it and waits on its fence before returning. It can be reused for
// any number of batches, one at a time.
type OneShotExecutor struct {
	driver commandDriver
	cb     *VulkanCommandBuffer
	fence  *VulkanFence

	mu    sync.Mutex
	state executorState
	// armed is false while the fence is reset and no submission will
	// signal it.
	armed bool
}

func NewOneShotExecutor(context *VulkanContext, pool vk.CommandPool) (*OneShotExecutor, error) {
	return newOneShotExecutor(&vkCommandDriver{context: context, pool: pool})
}

func newOneShotExecutor(driver commandDriver) (*OneShotExecutor, error) {
	cb, err := driver.allocateCommandBuffer()
	if err != nil {
		return nil, err
	}
	// Created signaled so the first Execute does not block.
	fence, err := driver.createFence(true)
	if err != nil {
		driver.freeCommandBuffer(cb)
		return nil, err
	}
	return &OneShotExecutor{driver: driver, cb: cb, fence: fence, armed: true}, nil
}

// Execute runs record against the executor's command buffer and submits it
// to queue. Wait semaphores pair one to one with waitStages. It returns
// after the GPU has finished the submission.
func (e *OneShotExecutor) Execute(
	queue vk.Queue,
	waitSemaphores []vk.Semaphore,
	waitStages []vk.PipelineStageFlags,
	signalSemaphores []vk.Semaphore,
	record func(cb vk.CommandBuffer),
) error {
	if len(waitSemaphores) != len(waitStages) {
		return fmt.Errorf("%d wait semaphores but %d wait stages", len(waitSemaphores), len(waitStages))
	}
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.setState(executorIdle)

	if e.armed {
		if err := e.driver.waitFence(e.fence); err != nil {
			return err
		}
	}
	// The fence only signals again once this batch reaches the queue.
	e.armed = false
	if err := e.driver.resetFence(e.fence); err != nil {
		return err
	}

	if err := e.driver.resetCommandBuffer(e.cb); err != nil {
		return err
	}
	if err := e.driver.beginCommandBuffer(e.cb); err != nil {
		return err
	}
	record(e.cb.Handle)
	if err := e.driver.endCommandBuffer(e.cb); err != nil {
		return err
	}

	info := submitInfo(e.cb.Handle, waitSemaphores, waitStages, signalSemaphores)
	if err := e.driver.submit(queue, info, e.fence); err != nil {
		return err
	}
	e.armed = true
	e.cb.UpdateSubmitted()

	return e.driver.waitFence(e.fence)
}

// Release frees the command buffer and fence once any pending work is done.
// Calling it more than once is a no-op.
func (e *OneShotExecutor) Release() error {
	e.mu.Lock()
	switch e.state {
	case executorReleased:
		e.mu.Unlock()
		return nil
	case executorExecuting:
		e.mu.Unlock()
		return core.ErrExecutorBusy
	}
	e.state = executorReleased
	e.mu.Unlock()

	var err error
	if e.armed {
		err = e.driver.waitFence(e.fence)
	}
	e.driver.freeCommandBuffer(e.cb)
	e.driver.destroyFence(e.fence)
	return err
}

func (e *OneShotExecutor) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case executorExecuting:
		return core.ErrExecutorBusy
	case executorReleased:
		return core.ErrExecutorReleased
	}
	e.state = executorExecuting
	return nil
}

func (e *OneShotExecutor) setState(s executorState) {
	e.mu.Lock()
	if e.state != executorReleased {
		e.state = s
	}
	e.mu.Unlock()
}

func submitInfo(cb vk.CommandBuffer, waits []vk.Semaphore, stages []vk.PipelineStageFlags, signals []vk.Semaphore) vk.SubmitInfo {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if len(waits) > 0 {
		info.WaitSemaphoreCount = uint32(len(waits))
		info.PWaitSemaphores = waits
		info.PWaitDstStageMask = stages
	}
	if len(signals) > 0 {
		info.SignalSemaphoreCount = uint32(len(signals))
		info.PSignalSemaphores = signals
	}
	return info
}

type vkCommandDriver struct {
	context *VulkanContext
	pool    vk.CommandPool
}

func (d *vkCommandDriver) allocateCommandBuffer() (*VulkanCommandBuffer, error) {
	return NewVulkanCommandBuffer(d.context, d.pool, true)
}

func (d *vkCommandDriver) freeCommandBuffer(cb *VulkanCommandBuffer) {
	cb.Free(d.context, d.pool)
}

func (d *vkCommandDriver) createFence(signaled bool) (*VulkanFence, error) {
	return NewFence(d.context, signaled)
}

func (d *vkCommandDriver) destroyFence(f *VulkanFence) {
	f.Destroy(d.context)
}

func (d *vkCommandDriver) waitFence(f *VulkanFence) error {
	return f.Wait(d.context, math.MaxUint64)
}

func (d *vkCommandDriver) resetFence(f *VulkanFence) error {
	return f.Reset(d.context)
}

func (d *vkCommandDriver) resetCommandBuffer(cb *VulkanCommandBuffer) error {
	return cb.Reset()
}

func (d *vkCommandDriver) beginCommandBuffer(cb *VulkanCommandBuffer) error {
	return cb.Begin(true, false, false)
}

func (d *vkCommandDriver) endCommandBuffer(cb *VulkanCommandBuffer) error {
	return cb.End()
}

func (d *vkCommandDriver) submit(queue vk.Queue, info vk.SubmitInfo, fence *VulkanFence) error {
	family := uint32(d.context.Device.GraphicsQueueIndex)
	return d.context.locks.SafeQueueCall(family, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fence.Handle); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		return nil
	})
}
