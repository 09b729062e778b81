package segmalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMallocStruct(t *testing.T) {
	assert := assert.New(t)

	type Arbitrary struct {
		Field1 int64
		Field2 float64
		Field3 [16]byte
	}

	h := newTestHeap(t)
	p, err := Malloc[Arbitrary](h)
	if !assert.NoError(err) {
		return
	}

	assert.True(h.Contains(p))
	assert.Equal(Arbitrary{}, *p)
	assert.Zero(uintptr(unsafe.Pointer(p)) % alignment)

	Free(h, p)
	requireHeapOK(t, h)
}

func TestMallocFunction(t *testing.T) {
	assert := assert.New(t)
	type IntFunc func(int) int

	h := newTestHeap(t)
	double, err := Malloc[IntFunc](h)
	if !assert.NoError(err) {
		return
	}

	*double = func(x int) int {
		return x * 2
	}

	assert.True(h.Contains(double))
	assert.Equal(4, (*double)(2))
}

func TestMallocTypedOutOfMemory(t *testing.T) {
	assert := assert.New(t)
	h := newTestHeap(t, WithMaxPages(1))

	p, err := Malloc[[testPageSize]byte](h)
	assert.Nil(p)
	assert.ErrorIs(err, ErrOutOfMemory)

	// Larger than any block can describe.
	s, err := MallocSlice[int64](h, 0, 1<<40)
	assert.Nil(s)
	assert.ErrorIs(err, ErrOutOfMemory)
	assert.Equal(2, h.Stats().OutOfMemory)
}

func TestFreeForeignPointerPanics(t *testing.T) {
	h := newTestHeap(t)
	mustMalloc(t, h, 8)

	x := 5
	assert.Panics(t, func() { Free(h, &x) })

	// The heap is poisoned from now on.
	_, err := h.Malloc(8)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestMallocSlice(t *testing.T) {
	assert := assert.New(t)
	h := newTestHeap(t)

	s, err := MallocSlice[int](h, 10)
	require.NoError(t, err)
	assert.Len(s, 10)
	assert.Equal(10, cap(s))
	assert.True(h.Contains(&s[0]))
	for _, v := range s {
		assert.Zero(v)
	}

	u, err := MallocSlice[uint8](h, 1, 100)
	require.NoError(t, err)
	assert.Len(u, 1)
	assert.Equal(100, cap(u))

	// Empty slices never touch the heap.
	e, err := MallocSlice[int](h, 0)
	require.NoError(t, err)
	assert.Empty(e)

	FreeSlice(h, s)
	FreeSlice(h, u)
	FreeSlice(h, e)
	assert.Zero(h.Stats().Payload)
	requireHeapOK(t, h)
}

func TestMallocSliceBadArguments(t *testing.T) {
	h := newTestHeap(t)

	assert.Panics(t, func() { MallocSlice[int](h, -1) })
	assert.Panics(t, func() { MallocSlice[int](h, 1, -1) })
	assert.Panics(t, func() { MallocSlice[int](h, 2, 1) })
	assert.Panics(t, func() { MallocSlice[int](h, 1, 2, 3) })
}

func TestShrinkSlice(t *testing.T) {
	assert := assert.New(t)
	h := newTestHeap(t)

	s, err := MallocSlice[int64](h, 4, 500)
	require.NoError(t, err)
	for i := range s {
		s[i] = int64(i)
	}
	before := h.FreeBytes()

	shrunk := ShrinkSlice(h, s)
	assert.Equal([]int64{0, 1, 2, 3}, shrunk)
	assert.Equal(4, cap(shrunk))
	assert.Equal(unsafe.SliceData(s), unsafe.SliceData(shrunk), "shrinking moved the data")
	assert.Greater(h.FreeBytes(), before)
	requireHeapOK(t, h)

	empty := ShrinkSlice(h, shrunk[:0])
	assert.Empty(empty)
	assert.Zero(cap(empty))
	assert.Zero(h.Stats().Payload)
	requireHeapOK(t, h)
}

func TestGrowSlice(t *testing.T) {
	assert := assert.New(t)
	h := newTestHeap(t)

	s, err := MallocSlice[int32](h, 3)
	require.NoError(t, err)
	copy(s, []int32{7, 8, 9})

	grown, err := GrowSlice(h, s, 1000)
	require.NoError(t, err)
	assert.Equal([]int32{7, 8, 9}, grown)
	assert.Equal(1000, cap(grown))
	assert.True(h.Contains(&grown[0]))

	// Already big enough.
	same, err := GrowSlice(h, grown, 10)
	require.NoError(t, err)
	assert.Equal(unsafe.SliceData(grown), unsafe.SliceData(same))

	// Room past the length is zeroed.
	for _, v := range grown[3:cap(grown)] {
		assert.Zero(v)
	}

	FreeSlice(h, grown)
	assert.Zero(h.Stats().Payload)
	requireHeapOK(t, h)
}

func TestGrowGoSlice(t *testing.T) {
	assert := assert.New(t)
	h := newTestHeap(t)

	grown, err := GrowSlice(h, []string{"a", "b"}, 16)
	require.NoError(t, err)
	assert.Equal([]string{"a", "b"}, grown)
	assert.True(h.Contains(&grown[0]))
	FreeSlice(h, grown)
}
