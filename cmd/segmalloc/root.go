package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pboyd/segmalloc"
	"github.com/pboyd/segmalloc/pagemem"
	"github.com/pboyd/segmalloc/trace"
)

var (
	// Global flags
	verbose bool
	jsonOut bool

	// Heap flags
	pageSize  int
	maxPages  int
	quickCap  int
	useMapped bool
)

var rootCmd = &cobra.Command{
	Use:   "segmalloc",
	Short: "Replay allocation traces against a segregated-fit heap",
	Long: `segmalloc runs allocation traces against a segregated-fit heap with
boundary-tag coalescing and per-size quick lists. It reports utilization and
fragmentation, dumps the block layout, and checks the heap invariants.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and heap debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", pagemem.DefaultPageSize, "Heap growth granularity in bytes")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", pagemem.DefaultMaxPages, "Maximum number of pages the heap may grow to")
	rootCmd.PersistentFlags().IntVar(&quickCap, "quick-cap", segmalloc.DefaultQuickListCap, "Blocks per quick list, 0 disables them")
	rootCmd.PersistentFlags().BoolVar(&useMapped, "mmap", false, "Back the heap with an anonymous memory mapping")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger logs heap warnings to stderr, and everything with --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newHeap builds a heap from the global flags.
func newHeap() (*segmalloc.Heap, error) {
	opts := []segmalloc.Option{
		segmalloc.WithPageSize(pageSize),
		segmalloc.WithMaxPages(maxPages),
		segmalloc.WithQuickListCap(quickCap),
		segmalloc.WithLogger(newLogger()),
	}

	if useMapped {
		m, err := pagemem.NewMapped(pageSize, maxPages)
		if err != nil {
			return nil, fmt.Errorf("failed to map heap: %w", err)
		}
		opts = append(opts, segmalloc.WithMemory(m))
	}

	return segmalloc.New(opts...)
}

// loadTrace reads a trace from a file, or from stdin if path is "-".
func loadTrace(path string) (*trace.Trace, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		defer f.Close()
		r = f
	}

	t, err := trace.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return t, nil
}

// replayFile loads a trace and replays it against a new heap. The heap is
// returned even when the replay fails so that callers can inspect it.
func replayFile(path string) (*segmalloc.Heap, *trace.Result, error) {
	t, err := loadTrace(path)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Loaded %d requests from %s\n", len(t.Ops), path)

	h, err := newHeap()
	if err != nil {
		return nil, nil, err
	}

	res, err := trace.Replay(h, t)
	return h, res, err
}

// Helper functions for output

// printInfo prints to stdout
func printInfo(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
