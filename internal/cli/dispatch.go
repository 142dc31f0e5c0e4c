package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/panopticon/internal/diff"
	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Rules string
}

// FiringOutput is one handler call in command output.
type FiringOutput struct {
	Path  string     `json:"path"`
	Kind  string     `json:"kind"`
	Value ir.IRValue `json:"value,omitempty"`
}

// DispatchResult is the JSON payload of the dispatch command.
type DispatchResult struct {
	Firings []FiringOutput `json:"firings"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch --rules <rules.cue> <before.json> <after.json>",
		Short: "Dispatch the diff of two documents against a rules file",
		Long: `Diff two JSON documents and walk the result against a rules tree,
printing every handler call in order.

Built-in actions run as they would on a save; audit does nothing since no
database is involved.

Example:
  panopticon dispatch --rules rules.cue before.json after.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to CUE rules file or directory (required)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runDispatch(opts *DispatchOptions, beforePath, afterPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	spec, err := loadRules(opts.Rules, newRegistry(logger, nil))
	if err != nil {
		return formatter.Fail(GetExitCode(err), errorCode(err, ErrCodeRules), "failed to load rules", err)
	}

	before, err := readObject(beforePath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read before document", err)
	}
	after, err := readObject(afterPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read after document", err)
	}

	result := DispatchResult{Firings: []FiringOutput{}}
	d := dispatch.New(
		dispatch.WithLogger(logger),
		dispatch.WithObserver(func(_ context.Context, f dispatch.Firing) {
			result.Firings = append(result.Firings, FiringOutput{
				Path:  strings.Join(f.Path, "."),
				Kind:  dispatch.KindOf(f.Change),
				Value: dispatch.ValueOf(f.Change),
			})
		}),
	)

	node := diff.Compute(before, after)
	doc := ir.NewDocument("", "", after)
	if err := d.Dispatch(commandContext(cmd), doc, spec.Rules, node); err != nil {
		return formatter.Fail(ExitFailure, errorCode(err, ErrCodeGeneric), "dispatch failed", err)
	}

	var text strings.Builder
	if len(result.Firings) == 0 {
		text.WriteString("No handlers fired.\n")
	}
	for _, f := range result.Firings {
		fmt.Fprintf(&text, "%s %s %s\n", f.Kind, f.Path, canonical(f.Value))
	}
	return formatter.Success(result, text.String())
}
