package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/panopticon/internal/rulespec"
)

// HandlerOutput is one handler binding of a validated rules file.
type HandlerOutput struct {
	Path   string `json:"path"`
	Action string `json:"action"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Handlers []HandlerOutput `json:"handlers"`
}

// ValidationDetails locates a rules error in JSON output.
type ValidationDetails struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Path   string `json:"path,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules.cue|rules-dir>",
		Short: "Validate a rules file",
		Long: `Compile a CUE rules file, or a directory holding a CUE package, and
list the handler paths it binds.

Array-valued rules, non-string leaves and unknown actions are reported with
their source position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	formatter.VerboseLog("Validating rules in %s", path)
	spec, err := loadRules(path, newRegistry(logger, nil))
	if err != nil {
		return outputValidateError(formatter, err)
	}

	result := ValidationResult{Valid: true, Handlers: make([]HandlerOutput, 0, len(spec.Actions))}
	for _, p := range spec.Paths() {
		result.Handlers = append(result.Handlers, HandlerOutput{Path: p, Action: spec.Actions[p]})
	}

	var text strings.Builder
	fmt.Fprintf(&text, "✓ Rules valid (%d handlers)\n", len(result.Handlers))
	for _, h := range result.Handlers {
		fmt.Fprintf(&text, "  %s -> %s\n", h.Path, h.Action)
	}
	return formatter.Success(result, text.String())
}

func outputValidateError(formatter *OutputFormatter, err error) error {
	var details any
	var compileErr *rulespec.CompileError
	if errors.As(err, &compileErr) {
		d := &ValidationDetails{Path: strings.Join(compileErr.Path, ".")}
		if compileErr.Pos.IsValid() {
			d.File = compileErr.Pos.Filename()
			d.Line = compileErr.Pos.Line()
			d.Column = compileErr.Pos.Column()
		}
		details = d
	}

	if outErr := formatter.Error(errorCode(err, ErrCodeRules), err.Error(), details); outErr != nil {
		return outErr
	}
	return err
}
