package segmalloc

import "encoding/binary"

const (
	// Every block starts and ends on this boundary.
	alignment = 16

	// Number of bytes in a header or footer word.
	wordSize = 8

	// Smallest block: a header plus two free-list links and a footer.
	minBlockSize = 32

	// Bytes of padding before the prologue, so that payloads land on
	// 16-byte boundaries.
	padSize = wordSize

	// Offset of the first real block.
	firstBlock = padSize + minBlockSize

	// Padding, prologue and epilogue.
	heapOverhead = padSize + minBlockSize + wordSize

	// Largest block size a header can describe.
	maxBlockSize = sizeMask
)

// Flag bits live in the low nibble of the size field.
const (
	inQuickListBit   header = 0x1
	prevAllocatedBit header = 0x2
	allocatedBit     header = 0x4

	sizeMask     = 0xffffffff &^ (alignment - 1)
	payloadShift = 32
)

// header is the decoded form of a header or footer word.
//
// The low 32 bits hold the block size and flags. The high 32 bits hold the
// number of bytes the caller asked for when the block was allocated.
type header uint64

func pack(size int, prevAllocated, allocated, inQuickList bool) header {
	hd := header(size) & sizeMask
	if prevAllocated {
		hd |= prevAllocatedBit
	}
	if allocated {
		hd |= allocatedBit
	}
	if inQuickList {
		hd |= inQuickListBit
	}
	return hd
}

func (hd header) size() int {
	return int(hd & sizeMask)
}

func (hd header) payload() int {
	return int(hd >> payloadShift)
}

func (hd header) allocated() bool {
	return hd&allocatedBit != 0
}

func (hd header) prevAllocated() bool {
	return hd&prevAllocatedBit != 0
}

func (hd header) inQuickList() bool {
	return hd&inQuickListBit != 0
}

func (hd header) withPayload(n int) header {
	return hd&(1<<payloadShift-1) | header(n)<<payloadShift
}

func (hd header) withPrevAllocated(v bool) header {
	if v {
		return hd | prevAllocatedBit
	}
	return hd &^ prevAllocatedBit
}

func encode(hd header, magic uint64) uint64 {
	return uint64(hd) ^ magic
}

func decode(w, magic uint64) header {
	return header(w ^ magic)
}

// block is the offset of a block's header from the start of heap memory.
// Negative offsets name free-list sentinels instead.
type block int

// The payload of a block starts right after its header.
func (b block) payload() int {
	return int(b) + wordSize
}

func (h *Heap) load(off int) uint64 {
	return binary.LittleEndian.Uint64(h.buf[off:])
}

func (h *Heap) store(off int, v uint64) {
	binary.LittleEndian.PutUint64(h.buf[off:], v)
}

func (h *Heap) header(b block) header {
	return decode(h.load(int(b)), h.magic)
}

func (h *Heap) setHeader(b block, hd header) {
	h.store(int(b), encode(hd, h.magic))
}

// prevFooter reads the footer of the block physically before b. It is only
// meaningful when that block is free.
func (h *Heap) prevFooter(b block) header {
	return decode(h.load(int(b)-wordSize), h.magic)
}

// setFree marks b free with the given size and writes its footer.
func (h *Heap) setFree(b block, size int, prevAllocated bool) {
	hd := pack(size, prevAllocated, false, false)
	h.setHeader(b, hd)
	h.store(int(b)+size-wordSize, encode(hd, h.magic))
}

// setNextPrevAllocated updates the prev-allocated bit of the block after b.
// Free blocks keep their footer in sync with the header.
func (h *Heap) setNextPrevAllocated(b block, v bool) {
	next := b + block(h.header(b).size())
	hd := h.header(next).withPrevAllocated(v)
	h.setHeader(next, hd)
	if !hd.allocated() {
		h.store(int(next)+hd.size()-wordSize, encode(hd, h.magic))
	}
}

// normalize returns the block size needed for a request of n bytes.
func normalize(n uintptr) (int, bool) {
	if n > maxBlockSize-wordSize-alignment {
		return 0, false
	}
	size := (int(n) + wordSize + alignment - 1) &^ (alignment - 1)
	return max(size, minBlockSize), true
}
