// Package segmalloc is a general purpose memory allocator that manages a
// growable run of pages.
//
// # Overview
//
// A Heap hands out 16-byte aligned blocks of untyped memory through Malloc,
// Realloc and Free, in the manner of the C library functions. Memory comes
// from a pagemem.Memory, one page at a time, the first time it is needed.
//
//	h, err := segmalloc.New()
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	p, err := h.Malloc(200)
//	if err != nil {
//	    return err
//	}
//	// ... use p ...
//	if err := h.Free(p); err != nil {
//	    return err
//	}
//
// Typed helpers (Malloc[T], MallocSlice, GrowSlice, ShrinkSlice, Free[T] and
// FreeSlice) wrap the raw interface for Go values.
//
// # Block Layout
//
// Every block begins with an 8-byte header holding the block size, an
// allocated bit, a bit telling whether the previous block is allocated, and a
// bit marking blocks cached on a quick list. Free blocks also carry a copy of
// the header in their last word, so the block before any block can be found
// in constant time. Headers and footers are XORed with a magic constant
// before they are stored.
//
//	   pad    prologue     block        block            epilogue
//	+-------+----------+-----------+----------------+----------+
//	| 8 B   | 32 B     | hdr | ... | hdr | ... |ftr | hdr (0 B)|
//	+-------+----------+-----------+----------------+----------+
//
// The smallest block is 32 bytes. A request for n bytes uses a block of
// max(32, roundUp(n+8, 16)) bytes.
//
// # Free Space
//
// Free blocks are kept on 10 segregated lists:
//
//	Class 0:     32 bytes
//	Class 1:    33 -   64 bytes
//	Class 2:    65 -  128 bytes
//	...
//	Class 8:  4097 - 8192 bytes
//	Class 9:  8193+       bytes
//
// Allocation takes the first block that fits, starting from the smallest
// class that could hold the request. Oversized blocks are split: the low part
// is returned and the high part goes back on a list. Blocks are never split
// if the remainder would be smaller than 32 bytes.
//
// Freed blocks of 32 to 176 bytes go to per-size quick lists without being
// merged with their neighbors, so they can be reused immediately. When a
// quick list is full it is flushed to the segregated lists. Every other freed
// block is merged with its free neighbors at once.
//
// # Errors
//
// Running out of memory and passing a bad pointer to Realloc are ordinary
// errors that leave the heap usable. Passing a bad pointer to Free, or any
// inconsistency found by Check, is a *FatalError: the heap refuses all
// further work rather than risk handing out corrupted memory.
//
// # Thread Safety
//
// Heap instances are not safe for concurrent use. Callers must synchronize
// access externally.
package segmalloc
