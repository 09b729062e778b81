package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	input := `# two blocks
a 0 100
a 1 2000

r 0 300
  f 1
f 0
`
	tr, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal([]Op{
		{Kind: Alloc, ID: 0, Size: 100},
		{Kind: Alloc, ID: 1, Size: 2000},
		{Kind: Realloc, ID: 0, Size: 300},
		{Kind: Free, ID: 1},
		{Kind: Free, ID: 0},
	}, tr.Ops)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"unknown request", "a 0 1\nx 1 2\n", "line 2"},
		{"long request", "alloc 0 1\n", "line 1"},
		{"missing size", "a 0\n", "line 1"},
		{"extra free argument", "a 0 1\nf 0 1\n", "line 2"},
		{"negative id", "# hi\na -1 10\n", "line 2"},
		{"bad size", "a 0 ten\n", "line 1"},
		{"negative size", "r 0 -10\n", "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.ErrorIs(t, err, ErrSyntax)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestWriteTo(t *testing.T) {
	assert := assert.New(t)

	tr := &Trace{Ops: []Op{
		{Kind: Alloc, ID: 7, Size: 64},
		{Kind: Realloc, ID: 7, Size: 0},
		{Kind: Free, ID: 7, Size: 99},
	}}

	var buf bytes.Buffer
	n, err := tr.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal("a 7 64\nr 7 0\nf 7\n", buf.String())
	assert.Equal(int64(buf.Len()), n)

	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Len(back.Ops, 3)
	assert.Equal(uintptr(0), back.Ops[2].Size)
}

func TestGenerate(t *testing.T) {
	assert := assert.New(t)

	a := Generate(42, 1000, 512)
	b := Generate(42, 1000, 512)
	assert.Equal(a, b, "same seed gave different traces")
	assert.NotEqual(a, Generate(43, 1000, 512))
	assert.Len(a.Ops, 1000)

	live := map[int]bool{}
	for i, op := range a.Ops {
		switch op.Kind {
		case Alloc:
			assert.False(live[op.ID], "op %d reuses a live id", i)
			live[op.ID] = true
		case Realloc:
			assert.True(live[op.ID], "op %d resizes a dead id", i)
		case Free:
			assert.True(live[op.ID], "op %d frees a dead id", i)
			delete(live, op.ID)
		}
		if op.Kind != Free {
			assert.True(op.Size >= 1 && op.Size <= 512, "op %d size %d", i, op.Size)
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "alloc", Alloc.String())
	assert.Equal(t, "free", Free.String())
	assert.Equal(t, "r 3 10", Op{Kind: Realloc, ID: 3, Size: 10}.String())
}
