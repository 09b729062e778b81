package segmalloc

import (
	"io"
	"log/slog"

	"github.com/pboyd/segmalloc/pagemem"
)

// DefaultMagic is XORed into every header and footer unless WithMagic is
// used. Its low nibble decodes to an unallocated block, so a zeroed word is
// never mistaken for a live header.
const DefaultMagic uint64 = 0x5eedc0def00db1a3

// DefaultQuickListCap is the number of blocks each quick list holds before
// it is flushed.
const DefaultQuickListCap = 5

// Option configures a Heap.
type Option func(*config)

type config struct {
	memory       pagemem.Memory
	pageSize     int
	maxPages     int
	quickListCap int
	magic        uint64
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		pageSize:     pagemem.DefaultPageSize,
		maxPages:     pagemem.DefaultMaxPages,
		quickListCap: DefaultQuickListCap,
		magic:        DefaultMagic,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithMemory makes the heap grow into m instead of a private Buffer. The
// page size and page limit options are ignored. The heap takes ownership of
// m and closes it in Close.
func WithMemory(m pagemem.Memory) Option {
	return func(c *config) {
		c.memory = m
	}
}

// WithPageSize sets the growth granularity in bytes.
func WithPageSize(size int) Option {
	return func(c *config) {
		c.pageSize = size
	}
}

// WithMaxPages limits how many pages the heap may grow to.
func WithMaxPages(pages int) Option {
	return func(c *config) {
		c.maxPages = pages
	}
}

// WithQuickListCap sets the capacity of each quick list. Zero disables the
// quick lists.
func WithQuickListCap(n int) Option {
	return func(c *config) {
		c.quickListCap = max(n, 0)
	}
}

// WithMagic sets the constant used to obfuscate block metadata.
func WithMagic(magic uint64) Option {
	return func(c *config) {
		c.magic = magic
	}
}

// WithLogger sets a structured logger for heap events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
