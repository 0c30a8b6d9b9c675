package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed(), "not started")

	c.Start()
	now = base.Add(16 * time.Millisecond)
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())

	c.Stop()
	now = base.Add(time.Second)
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())
}
