package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pboyd/segmalloc/trace"
)

var (
	genSeed    int64
	genOps     int
	genMaxSize int
	genOutput  string
)

func init() {
	rootCmd.AddCommand(newGenCmd())
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random trace",
		Long: `The gen command writes a random but reproducible trace. The same seed
always produces the same trace.

Example:
  segmalloc gen --seed 7 --ops 5000 --max-size 4096 -o random.rep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen()
		},
	}

	cmd.Flags().Int64Var(&genSeed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&genOps, "ops", 1000, "Number of requests")
	cmd.Flags().IntVar(&genMaxSize, "max-size", 1024, "Largest request size in bytes")
	cmd.Flags().StringVarP(&genOutput, "output", "o", "-", "Output file, - for stdout")
	return cmd
}

func runGen() error {
	if genOps < 0 || genMaxSize < 1 {
		return fmt.Errorf("--ops must be at least 0 and --max-size at least 1")
	}

	var w io.Writer = os.Stdout
	if genOutput != "-" {
		f, err := os.Create(genOutput)
		if err != nil {
			return fmt.Errorf("failed to create trace: %w", err)
		}
		defer f.Close()
		w = f
	}

	t := trace.Generate(genSeed, genOps, genMaxSize)
	if _, err := fmt.Fprintf(w, "# segmalloc gen --seed %d --ops %d --max-size %d\n", genSeed, genOps, genMaxSize); err != nil {
		return err
	}
	if _, err := t.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	if genOutput != "-" {
		printVerbose("Wrote %d requests to %s\n", len(t.Ops), genOutput)
	}
	return nil
}
