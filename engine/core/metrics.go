package core

import (
	"time"

	"github.com/spaghettifunk/cozy/engine/containers"
)

const AVG_COUNT = 30

// FrameMetrics keeps a moving average of the last AVG_COUNT frame times and
// the frames counted during the last full second.
type FrameMetrics struct {
	window      *containers.RingQueue[time.Duration]
	sum         time.Duration
	accumulated time.Duration
	frames      int
	fps         int
	total       uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		window: containers.NewRingQueue[time.Duration](AVG_COUNT),
	}
}

// Update records one frame. It reports true whenever a second of frame time
// has accumulated and FPS was refreshed.
func (m *FrameMetrics) Update(frame time.Duration) bool {
	if m.window.IsFull() {
		old, _ := m.window.Dequeue()
		m.sum -= old
	}
	_ = m.window.Enqueue(frame)
	m.sum += frame
	m.total++

	m.frames++
	m.accumulated += frame
	if m.accumulated >= time.Second {
		m.fps = m.frames
		m.frames = 0
		m.accumulated -= time.Second
		return true
	}
	return false
}

// FrameTime is the average over the window.
func (m *FrameMetrics) FrameTime() time.Duration {
	n := m.window.Len()
	if n == 0 {
		return 0
	}
	return m.sum / time.Duration(n)
}

func (m *FrameMetrics) FPS() int {
	return m.fps
}

func (m *FrameMetrics) Frames() uint64 {
	return m.total
}
