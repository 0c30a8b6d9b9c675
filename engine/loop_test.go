package engine

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	polls   int
	closeAt int
	onPoll  func(int)
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	if w.onPoll != nil {
		w.onPoll(w.polls)
	}
}

func (w *fakeWindow) CloseRequested() bool {
	return w.closeAt > 0 && w.polls >= w.closeAt
}

type fakeRenderer struct {
	renders    atomic.Int32
	destroys   atomic.Int32
	failAt     int32
	destroyErr error
}

func (r *fakeRenderer) Render() error {
	n := r.renders.Add(1)
	if r.failAt > 0 && n == r.failAt {
		return errors.New("device lost")
	}
	return nil
}

func (r *fakeRenderer) Destroy() error {
	r.destroys.Add(1)
	return r.destroyErr
}

func TestFrameLoopRendersUntilWindowCloses(t *testing.T) {
	w := &fakeWindow{closeAt: 4}
	r := &fakeRenderer{}
	loop := NewFrameLoop(w, r)
	assert.Equal(t, LoopStateRunning, loop.State())

	require.NoError(t, loop.Run())
	assert.EqualValues(t, 3, r.renders.Load())
	assert.EqualValues(t, 1, r.destroys.Load())
	assert.Equal(t, LoopStateDestroying, loop.State())
	assert.EqualValues(t, 3, loop.Metrics().Frames())

	// a second run does not render or destroy again
	require.NoError(t, loop.Run())
	assert.EqualValues(t, 3, r.renders.Load())
	assert.EqualValues(t, 1, r.destroys.Load())
}

func TestFrameLoopRequestClose(t *testing.T) {
	r := &fakeRenderer{}
	var loop *FrameLoop
	w := &fakeWindow{onPoll: func(n int) {
		if n == 3 {
			loop.RequestClose()
		}
	}}
	loop = NewFrameLoop(w, r)

	require.NoError(t, loop.Run())
	assert.EqualValues(t, 2, r.renders.Load())
	assert.EqualValues(t, 1, r.destroys.Load())
	assert.Equal(t, LoopStateDestroying, loop.State())
}

func TestFrameLoopRequestCloseFromAnotherGoroutine(t *testing.T) {
	r := &fakeRenderer{}
	var loop *FrameLoop
	started := make(chan struct{})
	w := &fakeWindow{onPoll: func(n int) {
		if n == 1 {
			close(started)
		}
	}}
	loop = NewFrameLoop(w, r)

	go func() {
		<-started
		loop.RequestClose()
	}()
	require.NoError(t, loop.Run())
	assert.EqualValues(t, 1, r.destroys.Load())
}

func TestFrameLoopRenderFailureDestroys(t *testing.T) {
	w := &fakeWindow{}
	r := &fakeRenderer{failAt: 2, destroyErr: errors.New("busy")}
	loop := NewFrameLoop(w, r)

	err := loop.Run()
	require.Error(t, err)
	assert.ErrorContains(t, err, "device lost")
	assert.ErrorContains(t, err, "busy")
	assert.EqualValues(t, 2, r.renders.Load())
	assert.EqualValues(t, 1, r.destroys.Load())
	assert.Equal(t, LoopStateDestroying, loop.State())
}

func TestLoopStateString(t *testing.T) {
	assert.Equal(t, "running", LoopStateRunning.String())
	assert.Equal(t, "destroying", LoopStateDestroying.String())
}
