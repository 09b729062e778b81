package segmalloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when neither the free lists nor heap growth
	// can satisfy a request. The heap is left consistent and usable.
	ErrOutOfMemory = errors.New("segmalloc: out of memory")

	// ErrInvalidArgument is returned by Realloc when the pointer was not
	// returned by this heap or is no longer allocated.
	ErrInvalidArgument = errors.New("segmalloc: invalid argument")

	// ErrCorrupted is the root of every fatal error. Once a heap reports it,
	// the heap refuses all further work.
	ErrCorrupted = errors.New("segmalloc: heap corrupted")
)

// FatalError reports a condition after which the heap metadata can no longer
// be trusted, such as freeing a pointer that was never allocated.
type FatalError struct {
	Op     string
	Addr   uintptr
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("segmalloc: %s %#x: %s", e.Op, e.Addr, e.Reason)
}

// Unwrap returns ErrCorrupted.
func (e *FatalError) Unwrap() error {
	return ErrCorrupted
}
