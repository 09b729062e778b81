package segmalloc

import (
	"fmt"
	"unsafe"
)

// reservedBit is the one flag bit in the size nibble that is never set.
const reservedBit header = 0x8

// validate checks that p could have been returned by this heap and is still
// allocated. It returns the block for p, or a reason p was rejected.
func (h *Heap) validate(p unsafe.Pointer) (block, string) {
	if p == nil {
		return 0, "nil pointer"
	}

	off, ok := h.offsetOf(p)
	if !ok {
		return 0, "pointer outside heap"
	}
	if off%alignment != 0 {
		return 0, "pointer not aligned"
	}

	b := block(off - wordSize)
	if b < firstBlock {
		return 0, "pointer before first block"
	}

	hd := h.header(b)
	switch size := hd.size(); {
	case size < minBlockSize:
		return 0, "block smaller than minimum"
	case hd&reservedBit != 0:
		return 0, "block size not aligned"
	case int(b)+size > int(h.epilogue()):
		return 0, "block extends past epilogue"
	case !hd.allocated():
		return 0, "block not allocated"
	case hd.inQuickList():
		return 0, "block is in a quick list"
	}

	if !hd.prevAllocated() {
		if b == firstBlock {
			return 0, "prologue marked free"
		}
		if h.prevFooter(b).allocated() {
			return 0, "previous block footer disagrees with header"
		}
	}

	return b, ""
}

// addr returns the address of the block header at b.
func (h *Heap) addr(b block) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(h.buf))) + uintptr(b)
}

// corrupted poisons the heap with a fatal error.
func (h *Heap) corrupted(op string, addr uintptr, reason string) error {
	h.fatal = &FatalError{Op: op, Addr: addr, Reason: reason}
	h.logger.Error("segmalloc: heap corrupted", "op", op, "addr", fmt.Sprintf("%#x", addr), "reason", reason)
	return h.fatal
}

// BlockInfo describes one block in the heap.
type BlockInfo struct {
	// Offset of the block header from the start of the heap.
	Offset int `json:"offset"`

	// Size of the block, including its header.
	Size int `json:"size"`

	// Payload is the size the caller asked for. Zero for free blocks.
	Payload int `json:"payload"`

	Allocated     bool `json:"allocated"`
	PrevAllocated bool `json:"prevAllocated"`
	InQuickList   bool `json:"inQuickList"`
}

// Walk calls fn for every block between the prologue and the epilogue, in
// address order, until fn returns false.
func (h *Heap) Walk(fn func(BlockInfo) bool) {
	if len(h.buf) == 0 {
		return
	}

	end := h.epilogue()
	for b := block(firstBlock); b < end; {
		hd := h.header(b)
		size := hd.size()
		if size < minBlockSize {
			// Corrupt. Check will say so.
			return
		}

		info := BlockInfo{
			Offset:        int(b),
			Size:          size,
			Allocated:     hd.allocated() && !hd.inQuickList(),
			PrevAllocated: hd.prevAllocated(),
			InQuickList:   hd.inQuickList(),
		}
		if info.Allocated {
			info.Payload = hd.payload()
		}
		if !fn(info) {
			return
		}
		b += block(size)
	}
}

// ListInfo describes the contents of one free list or quick list.
type ListInfo struct {
	// Quick is true for a quick list.
	Quick bool `json:"quick"`

	// Index is the size class of a free list, or the slot of a quick list.
	Index int `json:"index"`

	// Offsets of the blocks on the list, in list order.
	Offsets []int `json:"offsets"`
}

// Lists returns every non-empty free list followed by every non-empty quick
// list.
func (h *Heap) Lists() []ListInfo {
	if len(h.buf) == 0 {
		return nil
	}

	var lists []ListInfo
	for class := 0; class < numFreeLists; class++ {
		head := sentinel(class)
		l := ListInfo{Index: class}
		for b := h.next(head); b != head; b = h.next(b) {
			l.Offsets = append(l.Offsets, int(b))
		}
		if len(l.Offsets) > 0 {
			lists = append(lists, l)
		}
	}

	for i, q := range h.quick {
		if q.length == 0 {
			continue
		}
		l := ListInfo{Quick: true, Index: i}
		for b, n := q.first, 0; n < q.length; n++ {
			l.Offsets = append(l.Offsets, int(b))
			b = block(h.load(b.payload()))
		}
		lists = append(lists, l)
	}
	return lists
}

// Check walks the whole heap and verifies its invariants:
//
//   - blocks tile the space between the prologue and the epilogue exactly
//   - every prev-allocated bit matches the block before it
//   - free blocks have matching footers and no two free blocks are adjacent
//   - every free block is on the list for its size class, and nothing else is
//   - quick lists hold only cached blocks of their size, within capacity
//   - the running totals match the allocated blocks
//
// A violation is fatal: the heap is poisoned and a *FatalError is returned.
func (h *Heap) Check() error {
	if h.fatal != nil {
		return h.fatal
	}
	if len(h.buf) == 0 {
		return nil
	}

	fail := func(b block, format string, args ...any) error {
		return h.corrupted("check", h.addr(b), fmt.Sprintf(format, args...))
	}

	if hd := h.header(padSize); hd != pack(minBlockSize, true, true, false) {
		return fail(padSize, "bad prologue %#x", uint64(hd))
	}

	var freeBlocks, quickBlocks, allocatedBytes, payload int
	prevAllocated, prevFree := true, false

	end := h.epilogue()
	b := block(firstBlock)
	for b < end {
		hd := h.header(b)
		size := hd.size()
		if size < minBlockSize || hd&reservedBit != 0 || int(b)+size > int(end) {
			return fail(b, "bad block size %d", size)
		}
		if hd.prevAllocated() != prevAllocated {
			return fail(b, "prev-allocated bit is %v, previous block allocated is %v", hd.prevAllocated(), prevAllocated)
		}

		switch {
		case hd.inQuickList():
			if !hd.allocated() {
				return fail(b, "quick list block not marked allocated")
			}
			quickBlocks++
		case hd.allocated():
			allocatedBytes += size
			payload += hd.payload()
		default:
			if footer := decode(h.load(int(b)+size-wordSize), h.magic); footer != hd {
				return fail(b, "footer %#x does not match header %#x", uint64(footer), uint64(hd))
			}
			if prevFree {
				return fail(b, "adjacent free blocks not coalesced")
			}
			freeBlocks++
		}

		prevAllocated = hd.allocated()
		prevFree = !hd.allocated()
		b += block(size)
	}

	if b != end {
		return fail(b, "blocks overrun epilogue")
	}
	if hd := h.header(end); hd.size() != 0 || !hd.allocated() || hd.prevAllocated() != prevAllocated {
		return fail(end, "bad epilogue %#x", uint64(hd))
	}

	listed := 0
	for class := 0; class < numFreeLists; class++ {
		head := sentinel(class)
		prev := head
		for b := h.next(head); b != head; b = h.next(b) {
			if listed++; listed > freeBlocks {
				return fail(b, "free lists hold more blocks than the heap")
			}
			if b < firstBlock || b >= end {
				return fail(b, "free list %d links outside the heap", class)
			}
			hd := h.header(b)
			if hd.allocated() {
				return fail(b, "allocated block on free list %d", class)
			}
			if c := freeListClass(hd.size()); c != class {
				return fail(b, "block of size %d on free list %d, want %d", hd.size(), class, c)
			}
			if h.prev(b) != prev {
				return fail(b, "broken prev link on free list %d", class)
			}
			prev = b
		}
	}
	if listed != freeBlocks {
		return fail(firstBlock, "%d free blocks but %d listed", freeBlocks, listed)
	}

	cached := 0
	for i := range h.quick {
		q := &h.quick[i]
		if q.length > h.quickCap {
			return fail(firstBlock, "quick list %d holds %d blocks, capacity %d", i, q.length, h.quickCap)
		}
		b := q.first
		for k := 0; k < q.length; k++ {
			if b < firstBlock || b >= end {
				return fail(b, "quick list %d links outside the heap", i)
			}
			hd := h.header(b)
			if !hd.inQuickList() || hd.size() != minBlockSize+i*alignment {
				return fail(b, "block %#x does not belong on quick list %d", uint64(hd), i)
			}
			b = block(h.load(b.payload()))
		}
		cached += q.length
	}
	if cached != quickBlocks {
		return fail(firstBlock, "%d cached blocks but %d on quick lists", quickBlocks, cached)
	}

	if allocatedBytes != h.stats.AllocatedBytes || payload != h.stats.Payload {
		return fail(firstBlock, "totals drifted: blocks %d/%d payload %d/%d",
			allocatedBytes, h.stats.AllocatedBytes, payload, h.stats.Payload)
	}

	return nil
}
