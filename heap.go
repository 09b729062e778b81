package segmalloc

import (
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/pboyd/segmalloc/pagemem"
)

// Heap is a dynamic memory allocator over a growable run of pages.
//
// The heap is laid out as a sequence of blocks bounded by a prologue at the
// low end and an epilogue at the high end. Each block starts with a header
// word describing its size and state. Free blocks repeat the header in a
// footer so that neighbors can be found in both directions.
//
// Heap is not safe for concurrent use. Use a mutex if it will be used in
// multiple goroutines.
type Heap struct {
	mem      pagemem.Memory
	buf      []byte
	pageSize int
	magic    uint64
	quickCap int
	logger   *slog.Logger

	// limit caps the heap size so that every block size fits in a header.
	limit int64

	heads [numFreeLists]freeListHead
	quick [numQuickLists]quickList

	stats Stats

	// fatal is set once corruption is detected. Every later call fails
	// with it.
	fatal *FatalError
}

// New makes a heap. No memory is mapped until the first allocation.
func New(opts ...Option) (*Heap, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}

	mem := c.memory
	if mem == nil {
		var err error
		mem, err = pagemem.NewBuffer(c.pageSize, c.maxPages)
		if err != nil {
			return nil, fmt.Errorf("segmalloc: %w", err)
		}
	}
	if int64(mem.PageSize()) > pagemem.MaxSize {
		return nil, fmt.Errorf("segmalloc: %w", pagemem.ErrTooLarge)
	}
	if len(mem.Bytes()) != 0 {
		return nil, fmt.Errorf("segmalloc: memory already has %d bytes mapped", len(mem.Bytes()))
	}

	h := &Heap{
		mem:      mem,
		pageSize: mem.PageSize(),
		magic:    c.magic,
		quickCap: c.quickListCap,
		logger:   c.logger,
		limit:    pagemem.MaxSize,
	}
	h.resetLists()
	return h, nil
}

// Close releases the heap's memory. Every pointer returned by the heap
// becomes invalid.
func (h *Heap) Close() error {
	err := h.mem.Close()
	h.buf = nil
	h.stats = Stats{}
	h.resetLists()
	return err
}

func (h *Heap) resetLists() {
	for i := range h.heads {
		h.heads[i] = freeListHead{next: sentinel(i), prev: sentinel(i)}
	}
	for i := range h.quick {
		h.quick[i] = quickList{}
	}
}

// bootstrap maps the first page and lays out the prologue, the epilogue and
// one free block covering everything in between.
func (h *Heap) bootstrap() error {
	if _, err := h.mem.Grow(); err != nil {
		h.logger.Debug("segmalloc: cannot create heap", "err", err)
		return ErrOutOfMemory
	}
	h.buf = h.mem.Bytes()
	h.stats.Grows++

	h.store(0, 0)
	h.setHeader(padSize, pack(minBlockSize, true, true, false))

	end := h.epilogue()
	h.setHeader(end, pack(0, false, true, false))

	h.setFree(firstBlock, int(end-firstBlock), true)
	h.insertFree(firstBlock)

	h.logger.Debug("segmalloc: heap created", "size", len(h.buf))
	return nil
}

// grow maps up to pages more pages. Whatever was granted becomes a single
// free block in place of the old epilogue, merged with the block before it if
// that one is free. It only fails when no page at all was granted.
//
// The heap never grows past pagemem.MaxSize, whatever the Memory allows, so
// no block can outgrow its header.
func (h *Heap) grow(pages int) error {
	oldEnd := len(h.buf)

	granted := 0
	for ; granted < pages; granted++ {
		if int64(len(h.mem.Bytes())+h.pageSize) > h.limit {
			h.logger.Debug("segmalloc: heap at maximum size", "size", len(h.mem.Bytes()))
			break
		}
		if _, err := h.mem.Grow(); err != nil {
			h.logger.Debug("segmalloc: page request denied", "requested", pages, "granted", granted, "err", err)
			break
		}
	}
	if granted == 0 {
		return ErrOutOfMemory
	}

	h.buf = h.mem.Bytes()
	h.stats.Grows += granted

	old := block(oldEnd - wordSize)
	end := h.epilogue()
	h.setFree(old, int(end-old), h.header(old).prevAllocated())
	h.setHeader(end, pack(0, false, true, false))

	h.insertFree(old)
	h.coalesce(old)

	h.logger.Debug("segmalloc: heap grown", "pages", granted, "size", len(h.buf))
	return nil
}

// growFor grows the heap far enough that a block of need bytes fits at its
// top. A free block already touching the epilogue counts toward need.
func (h *Heap) growFor(need int) error {
	end := h.epilogue()

	tail := 0
	if !h.header(end).prevAllocated() {
		tail = h.prevFooter(end).size()
	}

	pages := (need - tail + h.pageSize - 1) / h.pageSize
	return h.grow(max(pages, 1))
}

// epilogue returns the offset of the epilogue header.
func (h *Heap) epilogue() block {
	return block(len(h.buf) - wordSize)
}

// Size returns the total amount of memory (in bytes) mapped by the heap.
func (h *Heap) Size() int {
	return len(h.buf)
}

// Raw makes a copy of the memory for debugging.
func (h *Heap) Raw() []byte {
	buf := make([]byte, len(h.buf))
	copy(buf, h.buf)
	return buf
}

// Contains returns true if the value the pointer points to is contained in the
// heap.
//
// Panics if p is not a pointer.
func (h *Heap) Contains(p any) bool {
	return h.owns(reflect.ValueOf(p).UnsafePointer())
}

func (h *Heap) owns(p unsafe.Pointer) bool {
	_, ok := h.offsetOf(p)
	return ok
}

// offsetOf converts a pointer into the heap to an offset from its first byte.
func (h *Heap) offsetOf(p unsafe.Pointer) (int, bool) {
	if p == nil || len(h.buf) == 0 {
		return 0, false
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(h.buf)))
	addr := uintptr(p)
	if addr < base || addr >= base+uintptr(len(h.buf)) {
		return 0, false
	}
	return int(addr - base), true
}

func (h *Heap) pointer(off int) unsafe.Pointer {
	return unsafe.Pointer(&h.buf[off])
}
