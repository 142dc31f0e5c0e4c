package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/panopticon/internal/diff"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	NoMoves bool
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Changed bool `json:"changed"`
	Delta   any  `json:"delta"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Print the diff tree of two JSON documents",
		Long: `Compute the difference between two JSON documents and print it in
jsondiffpatch format. Identical documents print null.

Example:
  panopticon diff before.json after.json
  panopticon diff before.json after.json --no-moves`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoMoves, "no-moves", false, "report moved array elements as removals and additions")

	return cmd
}

func runDiff(opts *DiffOptions, beforePath, afterPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	before, err := readValue(beforePath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read before document", err)
	}
	after, err := readValue(afterPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read after document", err)
	}

	var diffOpts []diff.Option
	if opts.NoMoves {
		diffOpts = append(diffOpts, diff.WithoutMoveDetection())
	}
	node := diff.Compute(before, after, diffOpts...)

	data, err := diff.Marshal(node)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to encode diff", err)
	}

	result := DiffResult{Changed: node != nil, Delta: diff.ToValue(node)}
	return formatter.Success(result, string(data)+"\n")
}
