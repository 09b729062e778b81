package segmalloc

// numQuickLists is the number of exact sizes cached, starting at
// minBlockSize in steps of alignment.
const numQuickLists = 10

// maxQuickSize is the largest block size that goes to a quick list.
const maxQuickSize = minBlockSize + (numQuickLists-1)*alignment

// quickList is a LIFO stack of recently freed blocks of one size. Blocks on
// it stay marked allocated so their neighbors never coalesce with them. The
// next link is kept in the first payload word; zero ends the list.
type quickList struct {
	first  block
	length int
}

// quickIndex returns the quick list for blocks of the given size.
func (h *Heap) quickIndex(size int) (int, bool) {
	if h.quickCap == 0 || size > maxQuickSize {
		return 0, false
	}
	return (size - minBlockSize) / alignment, true
}

// insertQuick caches a block that was just released. A full list is flushed
// first, so the list always ends up holding b.
func (h *Heap) insertQuick(b block, i int) {
	q := &h.quick[i]
	if q.length >= h.quickCap {
		h.flushQuick(i)
	}

	hd := h.header(b)
	h.setHeader(b, pack(hd.size(), hd.prevAllocated(), true, true))
	h.store(b.payload(), uint64(q.first))
	q.first = b
	q.length++
}

// flushQuick returns every block on quick list i to the free lists,
// coalescing each with its neighbors.
func (h *Heap) flushQuick(i int) {
	q := &h.quick[i]
	h.logger.Debug("segmalloc: flushing quick list", "size", minBlockSize+i*alignment, "blocks", q.length)

	b := q.first
	for ; q.length > 0; q.length-- {
		next := block(h.load(b.payload()))

		hd := h.header(b)
		h.setFree(b, hd.size(), hd.prevAllocated())
		h.setNextPrevAllocated(b, false)
		h.insertFree(b)
		h.coalesce(b)

		b = next
	}
	q.first = 0
}

// searchQuick pops the most recently cached block from quick list i.
func (h *Heap) searchQuick(i int) (block, bool) {
	q := &h.quick[i]
	if q.length == 0 {
		return 0, false
	}

	b := q.first
	q.first = block(h.load(b.payload()))
	q.length--

	hd := h.header(b)
	h.setHeader(b, pack(hd.size(), hd.prevAllocated(), true, false))
	return b, true
}
