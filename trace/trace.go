// Package trace reads, writes, generates and replays allocation traces.
//
// A trace is a text file with one request per line:
//
//	a <id> <size>   allocate size bytes and call the block id
//	r <id> <size>   resize block id to size bytes
//	f <id>          free block id
//
// Blank lines and lines starting with # are ignored.
package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned by Parse for a malformed line.
	ErrSyntax = errors.New("trace: syntax error")

	// ErrUnknownID is returned by Replay when a request names a block that is
	// not live.
	ErrUnknownID = errors.New("trace: unknown id")

	// ErrDuplicateID is returned by Replay when an allocation reuses the id
	// of a live block.
	ErrDuplicateID = errors.New("trace: duplicate id")

	// ErrPayloadChanged is returned by Replay when the data in a block is not
	// what was last written to it.
	ErrPayloadChanged = errors.New("trace: payload changed")

	// ErrMisaligned is returned by Replay when the heap returns a pointer
	// that is not 16-byte aligned.
	ErrMisaligned = errors.New("trace: misaligned pointer")
)

// Kind is the type of a request.
type Kind byte

const (
	Alloc   Kind = 'a'
	Realloc Kind = 'r'
	Free    Kind = 'f'
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	default:
		return fmt.Sprintf("Kind(%q)", byte(k))
	}
}

// Op is a single request.
type Op struct {
	Kind Kind
	ID   int

	// Size is ignored for Free.
	Size uintptr
}

func (op Op) String() string {
	if op.Kind == Free {
		return fmt.Sprintf("%c %d", op.Kind, op.ID)
	}
	return fmt.Sprintf("%c %d %d", op.Kind, op.ID, op.Size)
}

// Trace is a sequence of requests.
type Trace struct {
	Ops []Op
}

// Parse reads a trace. Errors name the offending line and wrap ErrSyntax.
func Parse(r io.Reader) (*Trace, error) {
	t := &Trace{}

	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, err := parseOp(strings.Fields(text))
		if err != nil {
			return nil, fmt.Errorf("trace: line %d: %w", line, err)
		}
		t.Ops = append(t.Ops, op)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}

	return t, nil
}

func parseOp(fields []string) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("%w: unknown request %q", ErrSyntax, fields[0])
	}

	op := Op{Kind: Kind(fields[0][0])}

	want := 3
	switch op.Kind {
	case Alloc, Realloc:
	case Free:
		want = 2
	default:
		return Op{}, fmt.Errorf("%w: unknown request %q", ErrSyntax, fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrSyntax, op.Kind, want-1, len(fields)-1)
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 {
		return Op{}, fmt.Errorf("%w: bad id %q", ErrSyntax, fields[1])
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return Op{}, fmt.Errorf("%w: bad size %q", ErrSyntax, fields[2])
		}
		op.Size = uintptr(size)
	}

	return op, nil
}

// WriteTo writes the trace in the format read by Parse.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, op := range t.Ops {
		buf.WriteString(op.String())
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}
