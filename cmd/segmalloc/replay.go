package main

import (
	"github.com/spf13/cobra"

	"github.com/pboyd/segmalloc/trace"
)

func init() {
	rootCmd.AddCommand(newReplayCmd())
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay a trace and report heap statistics",
		Long: `The replay command runs every request in a trace against a new heap,
verifying each block's contents as it goes, and prints the request counts,
peak utilization and final fragmentation.

Example:
  segmalloc replay short.rep
  segmalloc replay --max-pages 64 --json short.rep
  segmalloc gen --ops 1000 | segmalloc replay -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
	return cmd
}

func runReplay(args []string) error {
	h, res, err := replayFile(args[0])
	if h != nil {
		defer h.Close()
	}
	if res == nil {
		return err
	}

	if jsonOut {
		if jerr := printJSON(res); jerr != nil {
			return jerr
		}
		return err
	}

	printResult(args[0], res)
	return err
}

func printResult(path string, res *trace.Result) {
	printInfo("\nReplay: %s\n", path)
	printInfo("  Requests:    %d (%d alloc, %d realloc, %d free)\n", res.Ops, res.Allocs, res.Reallocs, res.Frees)
	printInfo("  Refused:     %d\n", res.Failed)
	printInfo("  Live blocks: %d\n", res.Live)
	printInfo("  Heap size:   %d bytes\n", res.Stats.HeapSize)
	printInfo("  Utilization: %.2f%% peak\n", res.PeakUtilization*100)
	printInfo("  Fragmentation: %.2f%%\n", res.Fragmentation*100)

	printVerbose("\nCounters:\n")
	printVerbose("  Coalesces: %d\n", res.Stats.Coalesces)
	printVerbose("  Grows:     %d\n", res.Stats.Grows)
	printVerbose("  Free blocks:  %d\n", res.Stats.FreeBlocks)
	printVerbose("  Quick blocks: %d\n", res.Stats.QuickBlocks)
}
