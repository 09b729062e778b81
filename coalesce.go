package segmalloc

// coalesce merges the free block b with any free neighbor and returns the
// resulting block. b must already be on a free list. The merged block is put
// back on the list for its new size.
//
// Blocks on a quick list are marked allocated, so they are never merged here.
func (h *Heap) coalesce(b block) block {
	hd := h.header(b)
	size := hd.size()

	next := b + block(size)
	nextHd := h.header(next)

	prevFree := !hd.prevAllocated()
	nextFree := !nextHd.allocated()
	if !prevFree && !nextFree {
		return b
	}

	h.removeFree(b)
	prevAllocated := hd.prevAllocated()

	if nextFree {
		h.removeFree(next)
		size += nextHd.size()
	}

	if prevFree {
		prevHd := h.prevFooter(b)
		prev := b - block(prevHd.size())
		h.removeFree(prev)
		size += prevHd.size()
		b = prev
		prevAllocated = h.header(prev).prevAllocated()
	}

	h.setFree(b, size, prevAllocated)
	h.insertFree(b)
	h.stats.Coalesces++
	return b
}
