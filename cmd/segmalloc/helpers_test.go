package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pboyd/segmalloc"
	"github.com/pboyd/segmalloc/pagemem"
)

// writeTrace writes a trace into a temporary file and returns its path
func writeTrace(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rep")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

// resetFlags restores every flag to its default
func resetFlags() {
	verbose = false
	jsonOut = false
	pageSize = pagemem.DefaultPageSize
	maxPages = pagemem.DefaultMaxPages
	quickCap = segmalloc.DefaultQuickListCap
	useMapped = false
	genSeed = 1
	genOps = 1000
	genMaxSize = 1024
	genOutput = "-"
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Drain the pipe while fn runs.
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	out := <-done
	r.Close()

	return string(out), fnErr
}
