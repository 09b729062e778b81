package segmalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

const testPageSize = 8192

func newTestHeap(t testing.TB, opts ...Option) *Heap {
	t.Helper()

	h, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func mustMalloc(t testing.TB, h *Heap, size uintptr) unsafe.Pointer {
	t.Helper()

	p, err := h.Malloc(size)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func mustFree(t testing.TB, h *Heap, p unsafe.Pointer) {
	t.Helper()
	require.NoError(t, h.Free(p))
}

// freeBlockCount counts blocks on the free lists of the given size, or all of
// them if size is 0.
func freeBlockCount(h *Heap, size int) int {
	n := 0
	for class := 0; class < numFreeLists; class++ {
		for _, b := range h.freeList(class) {
			if size == 0 || h.header(b).size() == size {
				n++
			}
		}
	}
	return n
}

// quickBlockCount counts blocks on the quick lists of the given size, or all
// of them if size is 0.
func quickBlockCount(h *Heap, size int) int {
	n := 0
	for i, q := range h.quick {
		if size == 0 || size == minBlockSize+i*alignment {
			n += q.length
		}
	}
	return n
}

func (h *Heap) freeList(class int) []block {
	var blocks []block
	if len(h.buf) == 0 {
		return nil
	}

	head := sentinel(class)
	for b := h.next(head); b != head; b = h.next(b) {
		blocks = append(blocks, b)
	}
	return blocks
}

// blockOf returns the header of the block holding payload p.
func blockOf(h *Heap, p unsafe.Pointer) header {
	off, ok := h.offsetOf(p)
	if !ok {
		panic("pointer not in heap")
	}
	return h.header(block(off - wordSize))
}

func requireHeapOK(t testing.TB, h *Heap) {
	t.Helper()
	require.NoError(t, h.Check())
}
