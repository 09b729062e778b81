//go:build unix

package pagemem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapped is a Memory backed by an anonymous private mapping.
//
// The whole range is reserved with no access when the Mapped is created.
// Grow commits one more page by making it readable and writable, so untouched
// pages never consume physical memory and stray accesses past the end of the
// heap fault instead of reading garbage.
type Mapped struct {
	region   []byte
	size     int
	pageSize int
	osPage   int
}

// NewMapped reserves address space for maxPages pages of pageSize bytes.
func NewMapped(pageSize, maxPages int) (*Mapped, error) {
	if err := checkGeometry(pageSize, maxPages); err != nil {
		return nil, err
	}

	osPage := unix.Getpagesize()
	limit := roundUp(pageSize*maxPages, osPage)

	region, err := unix.Mmap(-1, 0, limit, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pagemem: reserve %d bytes: %w", limit, err)
	}

	return &Mapped{
		region:   region[:pageSize*maxPages],
		pageSize: pageSize,
		osPage:   osPage,
	}, nil
}

// PageSize implements Memory.
func (m *Mapped) PageSize() int {
	return m.pageSize
}

// Grow implements Memory.
func (m *Mapped) Grow() (int, error) {
	if m.region == nil {
		return 0, ErrNoMemory
	}

	start := m.size
	end := start + m.pageSize
	if end > len(m.region) {
		return 0, ErrNoMemory
	}

	// mprotect works on OS pages, which may be larger than our pages.
	lo := start / m.osPage * m.osPage
	hi := min(roundUp(end, m.osPage), cap(m.region))
	if err := unix.Mprotect(m.region[lo:hi], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, errors.Join(ErrNoMemory, err)
	}

	m.size = end
	return start, nil
}

// Bytes implements Memory.
func (m *Mapped) Bytes() []byte {
	return m.region[:m.size]
}

// Close implements Memory.
func (m *Mapped) Close() error {
	if m.region == nil {
		return nil
	}

	err := unix.Munmap(m.region[:cap(m.region)])
	if errors.Is(err, unix.EINVAL) {
		// Already unmapped.
		err = nil
	}
	m.region = nil
	m.size = 0
	return err
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}

var _ Memory = (*Mapped)(nil)
