package pagemem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func growAll(t *testing.T, m Memory, pages int) {
	t.Helper()

	for i := 0; i < pages; i++ {
		start, err := m.Grow()
		require.NoError(t, err)
		require.Equal(t, i*m.PageSize(), start)
		require.Len(t, m.Bytes(), (i+1)*m.PageSize())
	}

	_, err := m.Grow()
	require.ErrorIs(t, err, ErrNoMemory)
	require.Len(t, m.Bytes(), pages*m.PageSize(), "failed grow must not change the size")
}

func TestBufferGrow(t *testing.T) {
	assert := assert.New(t)

	b, err := NewBuffer(DefaultPageSize, 4)
	require.NoError(t, err)

	assert.Empty(b.Bytes())
	growAll(t, b, 4)

	base := uintptr(unsafe.Pointer(unsafe.SliceData(b.Bytes())))
	assert.Zero(base%Alignment, "base must be aligned")

	// The whole range must be writable.
	buf := b.Bytes()
	for i := range buf {
		buf[i] = byte(i)
	}
	assert.Equal(byte(0xff), b.Bytes()[255])

	assert.NoError(b.Close())
	_, err = b.Grow()
	assert.ErrorIs(err, ErrNoMemory)
}

func TestBufferBaseIsStable(t *testing.T) {
	b, err := NewBuffer(MinPageSize, 8)
	require.NoError(t, err)

	_, err = b.Grow()
	require.NoError(t, err)
	first := unsafe.SliceData(b.Bytes())

	for i := 0; i < 7; i++ {
		_, err = b.Grow()
		require.NoError(t, err)
		assert.Equal(t, first, unsafe.SliceData(b.Bytes()))
	}
}

func TestBadGeometry(t *testing.T) {
	assert := assert.New(t)

	_, err := NewBuffer(MinPageSize-Alignment, 1)
	assert.ErrorIs(err, ErrBadPageSize)

	_, err = NewBuffer(MinPageSize+1, 1)
	assert.ErrorIs(err, ErrBadPageSize)

	_, err = NewBuffer(MinPageSize, 0)
	assert.ErrorIs(err, ErrNoMemory)

	_, err = NewMapped(100, 1)
	assert.ErrorIs(err, ErrBadPageSize)

	// Anything past 4GiB cannot be described by a block header.
	_, err = NewBuffer(1<<20, 1<<12+1)
	assert.ErrorIs(err, ErrTooLarge)

	_, err = NewMapped(1<<32, 2)
	assert.ErrorIs(err, ErrTooLarge)

	_, err = NewMapped(1<<33, 1)
	assert.ErrorIs(err, ErrTooLarge)
}

func TestMappedGrow(t *testing.T) {
	m, err := NewMapped(DefaultPageSize, 3)
	require.NoError(t, err)
	defer m.Close()

	growAll(t, m, 3)

	buf := m.Bytes()
	buf[0] = 1
	buf[len(buf)-1] = 2
	assert.Equal(t, byte(1), m.Bytes()[0])
	assert.Equal(t, byte(2), m.Bytes()[len(buf)-1])
}

func TestMappedClose(t *testing.T) {
	assert := assert.New(t)

	m, err := NewMapped(DefaultPageSize, 2)
	require.NoError(t, err)

	_, err = m.Grow()
	require.NoError(t, err)

	assert.NoError(m.Close())
	assert.NoError(m.Close(), "second close is a no-op")

	_, err = m.Grow()
	assert.ErrorIs(err, ErrNoMemory)
}
