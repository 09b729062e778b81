package example

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stackTestItem struct {
	Int   int
	Float float64
}

func TestStack(t *testing.T) {
	assert := assert.New(t)

	stack, err := NewStack[stackTestItem](1024)
	require.NoError(t, err)
	defer stack.Close()

	max := 0
	for i := 0; ; i++ {
		err := stack.Push(&stackTestItem{
			Int:   i,
			Float: float64(i),
		})
		if errors.Is(err, ErrStackOverflow) {
			break
		}
		if assert.NoError(err) {
			max = i
		}
	}
	assert.Equal(max+1, stack.Len())

	for i := max; i >= 0; i-- {
		item, err := stack.Pop()
		if assert.NoError(err) {
			assert.Equal(i, item.Int)
			assert.Equal(float64(i), item.Float)
		}
	}

	_, err = stack.Pop()
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.Zero(stack.Len())
}

func TestStackReuse(t *testing.T) {
	assert := assert.New(t)

	stack, err := NewStack[int](8192)
	require.NoError(t, err)
	defer stack.Close()

	// Popped items go back to the heap, so pushing and popping forever never
	// overflows.
	for i := 0; i < 10000; i++ {
		i := i
		require.NoError(t, stack.Push(&i))
		require.NoError(t, stack.Push(&i))

		v, err := stack.Pop()
		require.NoError(t, err)
		assert.Equal(i, *v)

		_, err = stack.Pop()
		require.NoError(t, err)
	}
}
