package segmalloc

// Stats holds running totals for a heap.
type Stats struct {
	// HeapSize is the number of bytes mapped, including the prologue and
	// epilogue.
	HeapSize int `json:"heapSize"`

	// Payload is the sum of the sizes requested for live allocations.
	Payload int `json:"payload"`

	// PeakPayload is the highest Payload has been.
	PeakPayload int `json:"peakPayload"`

	// AllocatedBytes is the sum of the sizes of allocated blocks. Blocks
	// cached on quick lists are not counted.
	AllocatedBytes int `json:"allocatedBytes"`

	FreeBlocks  int `json:"freeBlocks"`
	QuickBlocks int `json:"quickBlocks"`

	Mallocs     int `json:"mallocs"`
	Frees       int `json:"frees"`
	Reallocs    int `json:"reallocs"`
	Coalesces   int `json:"coalesces"`
	Grows       int `json:"grows"`
	OutOfMemory int `json:"outOfMemory"`
}

func (h *Heap) addPayload(n int) {
	h.stats.Payload += n
	h.stats.PeakPayload = max(h.stats.PeakPayload, h.stats.Payload)
}

// Stats returns a snapshot of the heap's totals. Counting the free blocks
// requires walking the free lists.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.HeapSize = len(h.buf)

	if len(h.buf) != 0 {
		for class := 0; class < numFreeLists; class++ {
			head := sentinel(class)
			for b := h.next(head); b != head; b = h.next(b) {
				s.FreeBlocks++
			}
		}
	}
	for _, q := range h.quick {
		s.QuickBlocks += q.length
	}
	return s
}

// FreeBytes returns the amount of unallocated space in the heap, including
// blocks cached on quick lists.
//
// This requires walking the free lists, so it can be slow.
func (h *Heap) FreeBytes() int {
	if len(h.buf) == 0 {
		return 0
	}

	free := 0
	for class := 0; class < numFreeLists; class++ {
		head := sentinel(class)
		for b := h.next(head); b != head; b = h.next(b) {
			free += h.header(b).size()
		}
	}
	for _, q := range h.quick {
		b := q.first
		for k := 0; k < q.length; k++ {
			free += h.header(b).size()
			b = block(h.load(b.payload()))
		}
	}
	return free
}

// Fragmentation returns the ratio of requested bytes to the total size of
// the blocks holding them. It is 0 when nothing is allocated. Values close to
// 1 mean little space is lost to headers and rounding.
func (h *Heap) Fragmentation() float64 {
	if h.stats.AllocatedBytes == 0 {
		return 0
	}
	return float64(h.stats.Payload) / float64(h.stats.AllocatedBytes)
}

// Utilization returns the peak payload divided by the current heap size. It
// is 0 when the heap has never been created.
func (h *Heap) Utilization() float64 {
	if len(h.buf) == 0 {
		return 0
	}
	return float64(h.stats.PeakPayload) / float64(len(h.buf))
}
