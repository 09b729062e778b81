package example

import (
	"errors"
	"unsafe"

	"github.com/pboyd/segmalloc"
	"github.com/pboyd/segmalloc/pagemem"
)

// ErrStackOverflow is returned by Push when the memory has been exhausted.
var ErrStackOverflow = errors.New("stack overflow")

// ErrStackUnderflow is returned by Pop when the stack is empty.
var ErrStackUnderflow = errors.New("stack underflow")

// Stack is a simple stack for a single data type which uses a fixed amount of memory.
type Stack[T any] struct {
	heap *segmalloc.Heap
	top  *stackItemHeader
	len  int
}

type stackItemHeader struct {
	data unsafe.Pointer
	prev *stackItemHeader
}

// NewStack returns a stack using a specific amount of memory. Size is in
// bytes and is rounded up to whole pages.
func NewStack[T any](size int) (*Stack[T], error) {
	pages := max((size+pagemem.DefaultPageSize-1)/pagemem.DefaultPageSize, 1)

	h, err := segmalloc.New(segmalloc.WithMaxPages(pages))
	if err != nil {
		return nil, err
	}
	return &Stack[T]{heap: h}, nil
}

// Len returns the number of items on the stack.
func (s *Stack[T]) Len() int {
	return s.len
}

// Push adds a copy of an item to the stack.
//
// Returns ErrStackOverflow if the stack is full.
func (s *Stack[T]) Push(item *T) error {
	header, err := s.newItemHeader()
	if err != nil {
		return err
	}

	data, err := segmalloc.Malloc[T](s.heap)
	if err != nil {
		segmalloc.Free(s.heap, header)
		if errors.Is(err, segmalloc.ErrOutOfMemory) {
			return ErrStackOverflow
		}
		return err
	}

	*data = *item
	header.data = unsafe.Pointer(data)

	header.prev = s.top
	s.top = header
	s.len++

	return nil
}

func (s *Stack[T]) newItemHeader() (*stackItemHeader, error) {
	header, err := segmalloc.Malloc[stackItemHeader](s.heap)
	if err != nil {
		if errors.Is(err, segmalloc.ErrOutOfMemory) {
			return nil, ErrStackOverflow
		}
		return nil, err
	}
	return header, nil
}

// Pop removes the last item pushed onto the stack and returns it.
//
// If the stack is empty ErrStackUnderflow is returned.
func (s *Stack[T]) Pop() (*T, error) {
	if s.top == nil {
		return nil, ErrStackUnderflow
	}

	item := (*T)(s.top.data)
	dup := *item

	oldTop := s.top
	s.top = s.top.prev
	s.len--

	segmalloc.Free(s.heap, item)
	segmalloc.Free(s.heap, oldTop)

	return &dup, nil
}

// Close releases the stack's memory. The stack must not be used afterwards.
func (s *Stack[T]) Close() error {
	s.top = nil
	s.len = 0
	return s.heap.Close()
}
