//go:build !unix

package pagemem

// Mapped falls back to a Buffer on platforms without mmap.
type Mapped struct {
	*Buffer
}

// NewMapped returns a Go-heap backed Memory on this platform.
func NewMapped(pageSize, maxPages int) (*Mapped, error) {
	b, err := NewBuffer(pageSize, maxPages)
	if err != nil {
		return nil, err
	}
	return &Mapped{Buffer: b}, nil
}

var _ Memory = (*Mapped)(nil)
