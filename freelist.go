package segmalloc

import "math/bits"

// numFreeLists is the number of size classes. Class 0 holds only minimum
// sized blocks. Class k holds sizes in (minBlockSize<<(k-1), minBlockSize<<k],
// and the last class holds everything larger.
const numFreeLists = 10

// freeListHead is the sentinel of a circular doubly-linked free list.
type freeListHead struct {
	next, prev block
}

// Sentinels are named by negative blocks so they can be stored in the same
// link words as real blocks.
func sentinel(class int) block {
	return block(-1 - class)
}

func (b block) isSentinel() bool {
	return b < 0
}

func (b block) class() int {
	return int(-1 - b)
}

// freeListClass returns the size class for a block of the given size.
func freeListClass(size int) int {
	k := bits.Len(uint(size-1) / minBlockSize)
	return min(k, numFreeLists-1)
}

// A free block stores its next link in the first payload word and its prev
// link in the second.

func (h *Heap) next(b block) block {
	if b.isSentinel() {
		return h.heads[b.class()].next
	}
	return block(int64(h.load(int(b) + wordSize)))
}

func (h *Heap) prev(b block) block {
	if b.isSentinel() {
		return h.heads[b.class()].prev
	}
	return block(int64(h.load(int(b) + 2*wordSize)))
}

func (h *Heap) setNext(b, next block) {
	if b.isSentinel() {
		h.heads[b.class()].next = next
		return
	}
	h.store(int(b)+wordSize, uint64(next))
}

func (h *Heap) setPrev(b, prev block) {
	if b.isSentinel() {
		h.heads[b.class()].prev = prev
		return
	}
	h.store(int(b)+2*wordSize, uint64(prev))
}

// insertFree pushes a free block on the front of its class list. The block's
// header must already hold its final size.
func (h *Heap) insertFree(b block) {
	head := sentinel(freeListClass(h.header(b).size()))
	first := h.next(head)

	h.setNext(b, first)
	h.setPrev(b, head)
	h.setPrev(first, b)
	h.setNext(head, b)
}

// removeFree unlinks b from whichever list it is on.
func (h *Heap) removeFree(b block) {
	prev, next := h.prev(b), h.next(b)
	h.setNext(prev, next)
	h.setPrev(next, prev)
}

// searchFree removes and returns the first block of at least size bytes,
// starting with the smallest class that could hold it.
func (h *Heap) searchFree(size int) (block, bool) {
	for class := freeListClass(size); class < numFreeLists; class++ {
		head := sentinel(class)
		for b := h.next(head); b != head; b = h.next(b) {
			if h.header(b).size() >= size {
				h.removeFree(b)
				return b, true
			}
		}
	}
	return 0, false
}
