package segmalloc

import (
	"fmt"
	"unsafe"
)

// Malloc allocates a new pointer in the heap of at least the given size. Size
// is in bytes. Unlike the typical behavior in Go, the data returned by Malloc
// is not zeroed.
//
// The returned pointer is aligned to 16 bytes. A size of zero returns a nil
// pointer and no error. ErrOutOfMemory is returned when the request cannot be
// satisfied even after growing the heap to its limit.
func (h *Heap) Malloc(size uintptr) (unsafe.Pointer, error) {
	if h.fatal != nil {
		return nil, h.fatal
	}
	if size == 0 {
		return nil, nil
	}

	b, err := h.allocate(size)
	if err != nil {
		return nil, err
	}
	return h.pointer(b.payload()), nil
}

func (h *Heap) allocate(size uintptr) (block, error) {
	h.stats.Mallocs++

	need, ok := normalize(size)
	if !ok {
		return 0, h.outOfMemory(size)
	}

	if len(h.buf) == 0 {
		if err := h.bootstrap(); err != nil {
			return 0, h.outOfMemory(size)
		}
	}

	b, found := h.find(need)
	if !found {
		if err := h.growFor(need); err != nil {
			return 0, h.outOfMemory(size)
		}
		b, found = h.find(need)
		if !found {
			return 0, h.outOfMemory(size)
		}
	}

	h.place(b, need, int(size))
	return b, nil
}

// find looks for a block of exactly need bytes in the quick lists, then for
// the first big enough block in the free lists.
func (h *Heap) find(need int) (block, bool) {
	if i, ok := h.quickIndex(need); ok {
		if b, ok := h.searchQuick(i); ok {
			return b, true
		}
	}
	return h.searchFree(need)
}

// place marks b allocated for a payload of n bytes. If the block is larger
// than needed by at least a minimum block, the low part is allocated and the
// high part goes back on a free list. Otherwise the whole block is used.
func (h *Heap) place(b block, need, n int) {
	hd := h.header(b)
	size := hd.size()

	if size-need >= minBlockSize {
		h.setHeader(b, pack(need, hd.prevAllocated(), true, false).withPayload(n))

		rest := b + block(need)
		h.setFree(rest, size-need, true)
		h.insertFree(rest)
		size = need
	} else {
		h.setHeader(b, pack(size, hd.prevAllocated(), true, false).withPayload(n))
		h.setNextPrevAllocated(b, true)
	}

	h.stats.AllocatedBytes += size
	h.addPayload(n)
}

func (h *Heap) outOfMemory(size uintptr) error {
	h.stats.OutOfMemory++
	h.logger.Warn("segmalloc: out of memory", "request", size, "heap", len(h.buf))
	return ErrOutOfMemory
}

// Free deallocates memory previously returned by Malloc or Realloc. The
// memory should not be used after calling Free.
//
// Small blocks are cached for reuse without being merged with their
// neighbors. Larger blocks are merged with any free neighbor immediately.
//
// Freeing a pointer that did not come from this heap, or freeing one twice,
// returns a *FatalError. The heap is unusable after that: every later call
// returns the same error.
func (h *Heap) Free(p unsafe.Pointer) error {
	if h.fatal != nil {
		return h.fatal
	}

	b, reason := h.validate(p)
	if reason != "" {
		return h.corrupted("free", uintptr(p), reason)
	}

	h.stats.Frees++
	h.release(b)
	return nil
}

func (h *Heap) release(b block) {
	hd := h.header(b)
	size := hd.size()

	h.stats.AllocatedBytes -= size
	h.stats.Payload -= hd.payload()

	if i, ok := h.quickIndex(size); ok {
		h.insertQuick(b, i)
		return
	}

	h.setFree(b, size, hd.prevAllocated())
	h.setNextPrevAllocated(b, false)
	h.insertFree(b)
	h.coalesce(b)
}

// Realloc changes the size of the allocation at p and returns a pointer to
// the resized memory.
//
// Shrinking, or growing within the slack of the current block, keeps the same
// pointer. Otherwise the data is copied to a new block and the old one is
// freed. If the new block cannot be allocated, p is left untouched and the
// error is returned.
//
// A size of zero frees p and returns nil. ErrInvalidArgument is returned if p
// is not a live allocation from this heap.
func (h *Heap) Realloc(p unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	if h.fatal != nil {
		return nil, h.fatal
	}

	b, reason := h.validate(p)
	if reason != "" {
		h.logger.Error("segmalloc: invalid realloc", "addr", fmt.Sprintf("%#x", uintptr(p)), "reason", reason)
		return nil, ErrInvalidArgument
	}
	h.stats.Reallocs++

	if size == 0 {
		h.stats.Frees++
		h.release(b)
		return nil, nil
	}

	need, ok := normalize(size)
	if !ok {
		return nil, h.outOfMemory(size)
	}

	hd := h.header(b)
	if need <= hd.size() {
		h.shrink(b, need, int(size))
		return p, nil
	}

	q, err := h.Malloc(size)
	if err != nil {
		return nil, err
	}

	n := min(hd.payload(), int(size))
	copy(unsafe.Slice((*byte)(q), n), unsafe.Slice((*byte)(p), n))

	h.stats.Frees++
	h.release(b)
	return q, nil
}

// shrink resizes b in place to need bytes holding a payload of n bytes. A
// leftover of at least a minimum block is split off and freed.
func (h *Heap) shrink(b block, need, n int) {
	hd := h.header(b)
	size := hd.size()

	h.stats.Payload -= hd.payload()
	h.addPayload(n)

	if size-need < minBlockSize {
		h.setHeader(b, hd.withPayload(n))
		return
	}

	h.setHeader(b, pack(need, hd.prevAllocated(), true, false).withPayload(n))
	h.stats.AllocatedBytes -= size - need

	rest := b + block(need)
	h.setFree(rest, size-need, true)
	h.setNextPrevAllocated(rest, false)
	h.insertFree(rest)
	h.coalesce(rest)
}

// UsableSize returns the number of bytes that may be used at p, which may be
// more than was requested.
func (h *Heap) UsableSize(p unsafe.Pointer) (int, error) {
	if h.fatal != nil {
		return 0, h.fatal
	}

	b, reason := h.validate(p)
	if reason != "" {
		return 0, ErrInvalidArgument
	}
	return h.header(b).size() - wordSize, nil
}
