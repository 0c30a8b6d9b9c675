package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestRunAllWaitsForEveryJob(t *testing.T) {
	js, err := NewJobSystem(3, 0)
	require.NoError(t, err)
	defer js.Shutdown()

	var ran, completed atomic.Int32
	jobs := make([]Job, 10)
	for i := range jobs {
		jobs[i] = Job{
			Name:       "count",
			Run:        func() error { ran.Add(1); return nil },
			OnComplete: func() { completed.Add(1) },
		}
	}
	require.NoError(t, js.RunAll(jobs...))
	assert.EqualValues(t, 10, ran.Load())
	assert.EqualValues(t, 10, completed.Load())
}

func TestRunAllJoinsFailures(t *testing.T) {
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	defer js.Shutdown()

	boom := errors.New("boom")
	var failures atomic.Int32
	err = js.RunAll(
		Job{Name: "ok", Run: func() error { return nil }},
		Job{Name: "shader", Run: func() error { return boom }, OnFailure: func(error) { failures.Add(1) }},
		Job{Name: "texture", Run: func() error { return boom }},
	)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "shader: boom")
	assert.ErrorContains(t, err, "texture: boom")
	assert.EqualValues(t, 1, failures.Load())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	assert.ErrorIs(t, js.Submit(Job{Name: "late", Run: func() error { return nil }}), ErrJobSystemClosed)
	assert.ErrorIs(t, js.RunAll(Job{Name: "late", Run: func() error { return nil }}), ErrJobSystemClosed)
}
