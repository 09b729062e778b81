package trace

import "math/rand"

// Generate returns a random trace of n requests with sizes from 1 to
// maxSize. The same seed always gives the same trace.
//
// Roughly half the requests are allocations. Frees and resizes only name
// blocks that are live at that point, so every generated trace replays
// without id errors.
func Generate(seed int64, n, maxSize int) *Trace {
	rnd := rand.New(rand.NewSource(seed))
	t := &Trace{Ops: make([]Op, 0, n)}

	var live []int
	nextID := 0

	size := func() uintptr {
		return uintptr(rnd.Intn(max(maxSize, 1)) + 1)
	}

	for k := 0; k < n; k++ {
		switch r := rnd.Intn(10); {
		case len(live) == 0 || r < 5:
			t.Ops = append(t.Ops, Op{Kind: Alloc, ID: nextID, Size: size()})
			live = append(live, nextID)
			nextID++

		case r < 8:
			i := rnd.Intn(len(live))
			t.Ops = append(t.Ops, Op{Kind: Free, ID: live[i]})
			live = append(live[:i], live[i+1:]...)

		default:
			id := live[rnd.Intn(len(live))]
			t.Ops = append(t.Ops, Op{Kind: Realloc, ID: id, Size: size()})
		}
	}

	return t
}
