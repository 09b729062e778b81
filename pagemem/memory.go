// Package pagemem provides the page-granular memory that a segmalloc heap
// grows into.
//
// A Memory hands out pages one at a time from a fixed reservation. The base
// address of the reservation never moves, so pointers into previously granted
// pages stay valid after every Grow.
package pagemem

import (
	"errors"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

const (
	// DefaultPageSize is the growth granularity used when none is given.
	DefaultPageSize = 8192

	// DefaultMaxPages caps the number of pages a Memory will grant.
	DefaultMaxPages = 20

	// Alignment of the first byte of every Memory.
	Alignment = 16

	// MinPageSize is the smallest page that can hold the padding word, a
	// prologue, a minimum sized block and an epilogue.
	MinPageSize = 64

	// MaxSize is the largest reservation a Memory will make. Block sizes
	// in a heap are 32-bit, so nothing larger can be described.
	MaxSize int64 = 1 << 32
)

var (
	// ErrNoMemory is returned by Grow when the reservation is exhausted.
	ErrNoMemory = errors.New("pagemem: out of memory")

	// ErrBadPageSize is returned when a page size is not a multiple of
	// Alignment or is smaller than MinPageSize.
	ErrBadPageSize = errors.New("pagemem: invalid page size")

	// ErrTooLarge is returned when pageSize*maxPages exceeds MaxSize.
	ErrTooLarge = errors.New("pagemem: reservation too large")
)

// Memory is a growable, contiguous run of pages.
type Memory interface {
	// PageSize returns the number of bytes added by each Grow.
	PageSize() int

	// Grow maps one more page and returns the offset of its first byte.
	// ErrNoMemory is returned when no more pages are available.
	Grow() (int, error)

	// Bytes returns every byte mapped so far. The returned slice must not
	// be retained across calls to Grow.
	Bytes() []byte

	// Close releases the reservation. The Memory must not be used again.
	Close() error
}

func checkGeometry(pageSize, maxPages int) error {
	if pageSize < MinPageSize || pageSize%Alignment != 0 {
		return ErrBadPageSize
	}
	if maxPages < 1 {
		return ErrNoMemory
	}
	if int64(pageSize) > MaxSize || int64(maxPages) > MaxSize/int64(pageSize) {
		return ErrTooLarge
	}
	return nil
}

// Buffer is a Memory that lives on the Go heap.
//
// The full reservation is made up front without zeroing it, and Grow only
// extends the visible length.
type Buffer struct {
	buf      []byte
	pageSize int
}

// NewBuffer reserves room for maxPages pages of pageSize bytes each.
func NewBuffer(pageSize, maxPages int) (*Buffer, error) {
	if err := checkGeometry(pageSize, maxPages); err != nil {
		return nil, err
	}

	limit := pageSize * maxPages
	raw := dirtmake.Bytes(limit+Alignment, limit+Alignment)

	// Skip ahead to the first aligned byte.
	pad := int(-uintptr(unsafe.Pointer(unsafe.SliceData(raw))) & (Alignment - 1))

	return &Buffer{
		buf:      raw[pad : pad : pad+limit],
		pageSize: pageSize,
	}, nil
}

// PageSize implements Memory.
func (b *Buffer) PageSize() int {
	return b.pageSize
}

// Grow implements Memory.
func (b *Buffer) Grow() (int, error) {
	if b.buf == nil {
		return 0, ErrNoMemory
	}

	start := len(b.buf)
	if cap(b.buf)-start < b.pageSize {
		return 0, ErrNoMemory
	}

	b.buf = b.buf[:start+b.pageSize]
	return start, nil
}

// Bytes implements Memory.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Close implements Memory. The reservation is left for the garbage collector.
func (b *Buffer) Close() error {
	b.buf = nil
	return nil
}

var _ Memory = (*Buffer)(nil)
