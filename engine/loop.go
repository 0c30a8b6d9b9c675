package engine

import (
	"errors"
	"sync/atomic"

	"github.com/spaghettifunk/cozy/engine/core"
)

type LoopState int32

const (
	LoopStateRunning LoopState = iota
	LoopStateDestroying
)

func (s LoopState) String() string {
	switch s {
	case LoopStateRunning:
		return "running"
	case LoopStateDestroying:
		return "destroying"
	}
	return "unknown"
}

// EventSource pumps window events and reports a close request.
type EventSource interface {
	PollEvents()
	CloseRequested() bool
}

// FrameRenderer draws frames until it is destroyed.
type FrameRenderer interface {
	Render() error
	Destroy() error
}

// FrameLoop drives the renderer from the window's event pump. Once it moves
// to LoopStateDestroying it never renders again.
type FrameLoop struct {
	events   EventSource
	renderer FrameRenderer

	state          atomic.Int32
	closeRequested atomic.Bool

	clock   *core.Clock
	metrics *core.FrameMetrics
}

func NewFrameLoop(events EventSource, renderer FrameRenderer) *FrameLoop {
	return &FrameLoop{
		events:   events,
		renderer: renderer,
		clock:    core.NewClock(),
		metrics:  core.NewFrameMetrics(),
	}
}

// Run renders until the window or RequestClose asks to stop, then destroys
// the renderer. A render failure also destroys the renderer and is returned.
func (l *FrameLoop) Run() error {
	for {
		l.events.PollEvents()
		if l.events.CloseRequested() || l.closeRequested.Load() {
			core.LogInfo("close requested, shutting down.")
			return l.destroy()
		}
		if l.State() != LoopStateRunning {
			return nil
		}

		l.clock.Start()
		if err := l.renderer.Render(); err != nil {
			core.LogError("render failed, shutting down: %s", err)
			return errors.Join(err, l.destroy())
		}
		l.clock.Update()

		if l.metrics.Update(l.clock.Elapsed()) {
			frameTime := l.metrics.FrameTime()
			core.LogDebug("frame time %.3fms, %d fps", float64(frameTime.Microseconds())/1000, l.metrics.FPS())
		}
	}
}

// RequestClose asks Run to stop after the current frame. It may be called
// from any goroutine.
func (l *FrameLoop) RequestClose() {
	l.closeRequested.Store(true)
}

func (l *FrameLoop) State() LoopState {
	return LoopState(l.state.Load())
}

func (l *FrameLoop) Metrics() *core.FrameMetrics {
	return l.metrics
}

func (l *FrameLoop) destroy() error {
	if !l.state.CompareAndSwap(int32(LoopStateRunning), int32(LoopStateDestroying)) {
		return nil
	}
	return l.renderer.Destroy()
}
