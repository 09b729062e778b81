package main

import (
	"github.com/spf13/cobra"

	"github.com/pboyd/segmalloc"
)

func init() {
	rootCmd.AddCommand(newDumpCmd())
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <trace>",
		Short: "Replay a trace and print every block in the heap",
		Long: `The dump command replays a trace and then prints the heap block by
block: offset, size, payload and flags, followed by the contents of the free
lists and quick lists.

Example:
  segmalloc dump short.rep
  segmalloc dump --json short.rep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

type heapDump struct {
	Size   int                   `json:"size"`
	Blocks []segmalloc.BlockInfo `json:"blocks"`
	Lists  []segmalloc.ListInfo  `json:"lists,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func runDump(args []string) error {
	h, _, err := replayFile(args[0])
	if h == nil {
		return err
	}
	defer h.Close()

	d := heapDump{Size: h.Size()}
	h.Walk(func(b segmalloc.BlockInfo) bool {
		d.Blocks = append(d.Blocks, b)
		return true
	})

	// The lists are only safe to follow in a consistent heap.
	if err == nil {
		d.Lists = h.Lists()
	} else {
		d.Error = err.Error()
	}

	if jsonOut {
		if jerr := printJSON(d); jerr != nil {
			return jerr
		}
		return err
	}

	printInfo("\nHeap: %d bytes, %d blocks\n", d.Size, len(d.Blocks))
	printInfo("  %8s  %8s  %8s  %s\n", "OFFSET", "SIZE", "PAYLOAD", "FLAGS")
	for _, b := range d.Blocks {
		printInfo("  %8d  %8d  %8d  %s\n", b.Offset, b.Size, b.Payload, blockFlags(b))
	}

	if len(d.Lists) > 0 {
		printInfo("\nLists:\n")
	}
	for _, l := range d.Lists {
		name := "free"
		if l.Quick {
			name = "quick"
		}
		printInfo("  %-5s %d: %v\n", name, l.Index, l.Offsets)
	}

	return err
}

func blockFlags(b segmalloc.BlockInfo) string {
	var s string
	switch {
	case b.InQuickList:
		s = "quick"
	case b.Allocated:
		s = "alloc"
	default:
		s = "free"
	}
	if b.PrevAllocated {
		s += ",prev-alloc"
	}
	return s
}
