package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <trace>",
		Short: "Replay a trace and verify the heap invariants",
		Long: `The check command replays a trace and fails if any block's contents
changed, any pointer was misaligned, or the heap invariant check fails at the
end.

Example:
  segmalloc check short.rep`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
	return cmd
}

func runCheck(args []string) error {
	h, res, err := replayFile(args[0])
	if h != nil {
		defer h.Close()
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{"ok": true, "ops": res.Ops})
	}
	printInfo("ok: %d requests, heap consistent\n", res.Ops)
	return nil
}
