package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueOrder(t *testing.T) {
	q := NewRingQueue[int](3)
	assert.True(t, q.IsEmpty())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	assert.True(t, q.IsFull())
	assert.ErrorIs(t, q.Enqueue(4), ErrQueueFull)

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// wraps around the backing array
	require.NoError(t, q.Enqueue(4))
	var got []int
	for !q.IsEmpty() {
		v, err := q.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
	assert.Zero(t, q.Len())
}

func TestRingQueueEmpty(t *testing.T) {
	q := NewRingQueue[string](1)
	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = q.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}
