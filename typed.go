package segmalloc

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Malloc allocates a pointer of an arbitrary type in the heap. The value is
// zeroed.
func Malloc[T any](h *Heap) (*T, error) {
	size := sizeof[T]()
	p, err := h.Malloc(size)
	if err != nil || p == nil {
		return nil, err
	}

	// Clear the memory before returning it.
	clear(unsafe.Slice((*byte)(p), size))

	return (*T)(p), nil
}

// MallocSlice allocates a zeroed slice of T with the given length and an
// optional capacity, which defaults to the length. The elements live in a
// single heap block, so a small backing array is often handed straight back
// from a quick list. Only the slice header is Go memory.
//
//	ints, err := MallocSlice[int](h, 10)      // len 10, cap 10
//	buf, err := MallocSlice[byte](h, 0, 4096) // len 0, cap 4096
//
// Appending past the capacity silently moves the data to the Go heap and
// leaks the block. Use GrowSlice, which resizes the block with Realloc and
// keeps it in place when the block has room.
//
// A zero capacity or a zero-sized T never touches the heap. MallocSlice
// panics on a negative length or capacity, a length past the capacity, or
// more than one capacity argument.
func MallocSlice[T any, N constraints.Integer](h *Heap, length N, capacity ...N) ([]T, error) {
	n, c := sliceBounds(length, capacity)

	size := sizeof[T]()
	if c == 0 || size == 0 {
		return make([]T, n, c), nil
	}
	if c > maxBlockSize/size {
		return nil, h.outOfMemory(c * size)
	}

	p, err := h.Malloc(c * size)
	if err != nil {
		return nil, err
	}

	s := unsafe.Slice((*T)(p), c)
	clear(s)
	return s[:n], nil
}

// sliceBounds validates the arguments to MallocSlice.
func sliceBounds[N constraints.Integer](length N, capacity []N) (uintptr, uintptr) {
	if length < 0 {
		panic("segmalloc.MallocSlice: negative length")
	}

	c := length
	switch len(capacity) {
	case 0:
	case 1:
		c = capacity[0]
	default:
		panic("segmalloc.MallocSlice: more than one capacity")
	}

	if c < 0 {
		panic("segmalloc.MallocSlice: negative capacity")
	}
	if length > c {
		panic("segmalloc.MallocSlice: length exceeds capacity")
	}
	return uintptr(length), uintptr(c)
}

// Free deallocates the memory associated with a pointer that was previously
// allocated in the heap.
//
// Free will panic if the pointer was not allocated within the heap.
//
// The object should not be used after calling Free.
func Free[T any](h *Heap, p *T) {
	if p == nil {
		return
	}

	if err := h.Free(unsafe.Pointer(p)); err != nil {
		panic(err)
	}
}

// FreeSlice deallocates the data in a slice allocated with MallocSlice. This
// will panic if the slice data is not in the heap.
//
// The slice should not be used after calling FreeSlice.
func FreeSlice[T any](h *Heap, s []T) {
	if !inHeap(s) {
		return
	}

	if err := h.Free(unsafe.Pointer(unsafe.SliceData(s))); err != nil {
		panic(err)
	}
}

// ShrinkSlice frees any unused capacity in a slice. The returned slice will
// use the same underlying data as the original slice, but with a capacity
// equal to the length of the original slice.
//
// If the slice has a length of zero the entire slice is freed and an empty
// slice with no capacity is returned.
//
// Appending to the original slice after calling ShrinkSlice will corrupt the
// heap. Callers should take care to use the returned slice in place of the
// original one.
//
// This will panic if the slice data was not allocated in the heap.
func ShrinkSlice[T any](h *Heap, s []T) []T {
	if !inHeap(s) {
		return s
	}

	if len(s) == 0 {
		FreeSlice(h, s)
		return []T{}
	}

	p, err := h.Realloc(unsafe.Pointer(unsafe.SliceData(s)), sizeof[T]()*uintptr(len(s)))
	if err != nil {
		panic(err)
	}

	// Shrinking never moves the data.
	return unsafe.Slice((*T)(p), len(s))
}

// GrowSlice returns a slice with the contents of s and room for at least
// capacity elements. The data may move, in which case s must not be used
// again. Elements past len(s) are zeroed.
//
// If s was not allocated in the heap, a new heap slice is allocated and s is
// copied into it.
func GrowSlice[T any, N constraints.Integer](h *Heap, s []T, capacity N) ([]T, error) {
	c := int(capacity)
	if c <= cap(s) {
		return s, nil
	}

	if !inHeap(s) || !h.owns(unsafe.Pointer(unsafe.SliceData(s))) {
		grown, err := MallocSlice[T](h, len(s), c)
		if err != nil {
			return nil, err
		}
		copy(grown, s)
		return grown, nil
	}

	p, err := h.Realloc(unsafe.Pointer(unsafe.SliceData(s)), sizeof[T]()*uintptr(c))
	if err != nil {
		return nil, err
	}

	grown := unsafe.Slice((*T)(p), c)
	clear(grown[len(s):])
	return grown[:len(s)], nil
}

// inHeap reports whether s has backing memory that Malloc could have
// returned.
func inHeap[T any](s []T) bool {
	return s != nil && cap(s) != 0 && sizeof[T]() != 0
}

func sizeof[T any]() uintptr {
	return unsafe.Sizeof((*(*T)(nil)))
}
