package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameMetricsAverage(t *testing.T) {
	m := NewFrameMetrics()
	assert.Zero(t, m.FrameTime())

	m.Update(10 * time.Millisecond)
	m.Update(20 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, m.FrameTime())
	assert.EqualValues(t, 2, m.Frames())
}

func TestFrameMetricsWindowSlides(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(time.Millisecond)
	}
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(3 * time.Millisecond)
	}
	assert.Equal(t, 3*time.Millisecond, m.FrameTime())
}

func TestFrameMetricsFPS(t *testing.T) {
	m := NewFrameMetrics()
	refreshed := false
	for i := 0; i < 60; i++ {
		refreshed = m.Update(time.Second / 60)
	}
	// 60 * (1s/60) truncates below a full second.
	assert.False(t, refreshed)
	assert.True(t, m.Update(time.Second/60))
	assert.Equal(t, 61, m.FPS())
}
