package trace

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/pboyd/segmalloc"
)

// Result summarizes a replay.
type Result struct {
	Ops      int `json:"ops"`
	Allocs   int `json:"allocs"`
	Reallocs int `json:"reallocs"`
	Frees    int `json:"frees"`

	// Requests the heap refused with ErrOutOfMemory. A refused realloc
	// leaves the block where it was.
	Failed int `json:"failed"`

	// Blocks still allocated at the end.
	Live int `json:"live"`

	PeakUtilization float64 `json:"peakUtilization"`
	Fragmentation   float64 `json:"fragmentation"`

	Stats segmalloc.Stats `json:"stats"`
}

type liveBlock struct {
	p    unsafe.Pointer
	size uintptr
}

// Replay runs every request in t against h.
//
// Each block is filled with a pattern derived from its id, and the pattern is
// checked before the block is freed and after it is resized. Once all
// requests have run, the heap's own consistency check runs too. The Result
// is returned even when err is not nil.
func Replay(h *segmalloc.Heap, t *Trace) (*Result, error) {
	res := &Result{}
	live := make(map[int]liveBlock)

	for i, op := range t.Ops {
		res.Ops++
		if err := replayOp(h, op, live, res); err != nil {
			res.summarize(h, live)
			return res, fmt.Errorf("trace: op %d (%s): %w", i, op, err)
		}
	}

	res.summarize(h, live)
	if err := h.Check(); err != nil {
		return res, fmt.Errorf("trace: %w", err)
	}
	return res, nil
}

func replayOp(h *segmalloc.Heap, op Op, live map[int]liveBlock, res *Result) error {
	rec, ok := live[op.ID]

	switch op.Kind {
	case Alloc:
		if ok {
			return ErrDuplicateID
		}
		res.Allocs++

		p, err := h.Malloc(op.Size)
		if errors.Is(err, segmalloc.ErrOutOfMemory) {
			res.Failed++
			return nil
		}
		if err != nil {
			return err
		}
		if err := checkAligned(p); err != nil {
			return err
		}

		rec = liveBlock{p: p, size: op.Size}
		fill(rec, op.ID, 0)
		live[op.ID] = rec

	case Realloc:
		if !ok {
			return ErrUnknownID
		}
		res.Reallocs++
		if err := verify(rec, op.ID, rec.size); err != nil {
			return err
		}

		var (
			p   unsafe.Pointer
			err error
		)
		if rec.p == nil {
			p, err = h.Malloc(op.Size)
		} else {
			p, err = h.Realloc(rec.p, op.Size)
		}
		if errors.Is(err, segmalloc.ErrOutOfMemory) {
			res.Failed++
			return nil
		}
		if err != nil {
			return err
		}
		if err := checkAligned(p); err != nil {
			return err
		}

		kept := min(rec.size, op.Size)
		rec = liveBlock{p: p, size: op.Size}
		if err := verify(rec, op.ID, kept); err != nil {
			return err
		}
		fill(rec, op.ID, kept)
		live[op.ID] = rec

	case Free:
		if !ok {
			return ErrUnknownID
		}
		res.Frees++
		if err := verify(rec, op.ID, rec.size); err != nil {
			return err
		}
		if rec.p != nil {
			if err := h.Free(rec.p); err != nil {
				return err
			}
		}
		delete(live, op.ID)

	default:
		return fmt.Errorf("%w: unknown request %s", ErrSyntax, op.Kind)
	}

	return nil
}

func (res *Result) summarize(h *segmalloc.Heap, live map[int]liveBlock) {
	res.Live = len(live)
	res.PeakUtilization = h.Utilization()
	res.Fragmentation = h.Fragmentation()
	res.Stats = h.Stats()
}

func checkAligned(p unsafe.Pointer) error {
	if uintptr(p)%16 != 0 {
		return fmt.Errorf("%w: %#x", ErrMisaligned, uintptr(p))
	}
	return nil
}

func pattern(id, i int) byte {
	return byte(id*131 + i)
}

func payload(rec liveBlock) []byte {
	if rec.p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(rec.p), rec.size)
}

// fill writes the pattern for id from byte from onward.
func fill(rec liveBlock, id int, from uintptr) {
	data := payload(rec)
	for i := int(from); i < len(data); i++ {
		data[i] = pattern(id, i)
	}
}

// verify checks the first n bytes of the block against the pattern for id.
func verify(rec liveBlock, id int, n uintptr) error {
	data := payload(rec)
	for i, m := 0, min(int(n), len(data)); i < m; i++ {
		if data[i] != pattern(id, i) {
			return fmt.Errorf("%w: id %d byte %d is %#x, want %#x", ErrPayloadChanged, id, i, data[i], pattern(id, i))
		}
	}
	return nil
}
