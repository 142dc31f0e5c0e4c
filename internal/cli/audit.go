package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/panopticon/internal/store"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit --db <db> --id <id>",
		Short: "List the audit records of a document",
		Long: `List the changes the audit action recorded for a document, oldest first.

Example:
  panopticon audit --db ./panopticon.db --id user-1
  panopticon audit --db ./panopticon.db --id user-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	opts.addFlags(cmd, true)

	return cmd
}

func runAudit(opts *DocumentOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database, logger)
	if err != nil {
		return formatter.Fail(GetExitCode(err), ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st, logger)

	records, err := st.ReadAudit(commandContext(cmd), opts.Collection, opts.ID)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to read audit log", err)
	}

	return formatter.Success(records, formatAuditText(records))
}

func formatAuditText(records []store.AuditRecord) string {
	if len(records) == 0 {
		return "No audit records.\n"
	}

	var text strings.Builder
	for _, r := range records {
		fmt.Fprintf(&text, "%d  cycle %d (%s)  %s %s %s\n",
			r.Seq, r.CycleSeq, r.CycleToken, r.Kind, r.Path, r.Value)
	}
	return text.String()
}
