package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/store"
	"github.com/roach88/panopticon/internal/watch"
)

// DefaultCollection is used when --collection is not given.
const DefaultCollection = "documents"

// DocumentOptions holds the flags shared by the document commands.
type DocumentOptions struct {
	*RootOptions
	Database   string
	Collection string
	ID         string
}

func (o *DocumentOptions) addFlags(cmd *cobra.Command, withID bool) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&o.Collection, "collection", DefaultCollection, "document collection")
	_ = cmd.MarkFlagRequired("db")
	if withID {
		cmd.Flags().StringVar(&o.ID, "id", "", "document id (required)")
		_ = cmd.MarkFlagRequired("id")
	}
}

// PutOptions holds flags for the put command.
type PutOptions struct {
	DocumentOptions
	Rules  string
	Tokens string // "uuid" | "ulid"

	// CycleTokens allows overriding the cycle token generator (for testing).
	// If nil, --tokens selects one.
	CycleTokens watch.CycleTokenGenerator
}

// DocumentOutput is a stored document in command output.
type DocumentOutput struct {
	Collection string      `json:"collection"`
	ID         string      `json:"id"`
	Version    int64       `json:"version"`
	Fields     ir.IRObject `json:"fields"`
}

// PutResult is the JSON payload of the put command.
type PutResult struct {
	Created bool           `json:"created"`
	Version int64          `json:"version"`
	Cycle   string         `json:"cycle,omitempty"`
	Firings []FiringOutput `json:"firings"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{DocumentOptions: DocumentOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "put --db <db> --id <id> [--rules <rules.cue>] <doc.json>",
		Short: "Create or update a stored document",
		Long: `Store a JSON document.

A new document is created at version 1; nothing is dispatched. An existing
document is loaded, its fields are replaced by the file's and it is saved,
dispatching the change against the rules. The audit action appends every
change to the database's audit log.

The database is created if it doesn't exist.

Example:
  panopticon put --db ./panopticon.db --id user-1 --rules rules.cue user.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd, true)
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to CUE rules file or directory")
	cmd.Flags().StringVar(&opts.Tokens, "tokens", "uuid", "cycle token format (uuid|ulid)")

	return cmd
}

func runPut(opts *PutOptions, docPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	tokens := opts.CycleTokens
	if tokens == nil {
		gen, err := cycleTokenGenerator(opts.Tokens)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, "invalid --tokens", err)
		}
		tokens = gen
	}

	fields, err := readObject(docPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read document", err)
	}

	st, err := store.Open(opts.Database, store.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st, logger)

	result := PutResult{Firings: []FiringOutput{}}
	schema := watch.NewSchema()
	if opts.Rules != "" {
		spec, err := loadRules(opts.Rules, newRegistry(logger, st))
		if err != nil {
			return formatter.Fail(GetExitCode(err), errorCode(err, ErrCodeRules), "failed to load rules", err)
		}

		// Continue cycle numbering after the last audited cycle.
		last, err := st.LastCycleSeq(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read audit log", err)
		}

		watch.Attach(schema, spec.Rules,
			watch.WithLogger(logger),
			watch.WithCycleTokens(tokens),
			watch.WithSequencer(watch.NewClockAt(last)),
			watch.WithObserver(func(ctx context.Context, f dispatch.Firing) {
				if cycle, ok := watch.CycleFromContext(ctx); ok {
					result.Cycle = cycle.Token
				}
				result.Firings = append(result.Firings, FiringOutput{
					Path:  strings.Join(f.Path, "."),
					Kind:  dispatch.KindOf(f.Change),
					Value: dispatch.ValueOf(f.Change),
				})
			}))
	}
	coll := st.Collection(opts.Collection, schema)

	doc, err := coll.Load(ctx, opts.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc = ir.NewDocument(opts.Collection, opts.ID, fields)
		if err := coll.Create(ctx, doc); err != nil {
			return formatter.Fail(ExitFailure, storeErrorCode(err), "failed to create document", err)
		}
		result.Created = true
	case err != nil:
		return formatter.Fail(ExitCommandError, storeErrorCode(err), "failed to load document", err)
	default:
		doc.Fields = fields
		if err := coll.Save(ctx, doc); err != nil {
			return formatter.Fail(ExitFailure, storeErrorCode(err), "failed to save document", err)
		}
	}
	result.Version = doc.Version

	var text strings.Builder
	if result.Created {
		fmt.Fprintf(&text, "Created %s/%s (version %d)\n", opts.Collection, opts.ID, doc.Version)
	} else {
		fmt.Fprintf(&text, "Saved %s/%s (version %d, %d handler calls)\n",
			opts.Collection, opts.ID, doc.Version, len(result.Firings))
	}
	for _, f := range result.Firings {
		fmt.Fprintf(&text, "  %s %s %s\n", f.Kind, f.Path, canonical(f.Value))
	}
	return formatter.Success(result, text.String())
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get --db <db> --id <id>",
		Short: "Print a stored document",
		Long: `Print a stored document's fields as canonical JSON.

Reading does not fire any hook.

Example:
  panopticon get --db ./panopticon.db --id user-1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, cmd)
		},
	}

	opts.addFlags(cmd, true)

	return cmd
}

func runGet(opts *DocumentOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database, logger)
	if err != nil {
		return formatter.Fail(GetExitCode(err), ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st, logger)

	doc, err := st.Collection(opts.Collection, nil).Get(commandContext(cmd), opts.ID)
	if err != nil {
		return formatter.Fail(ExitFailure, storeErrorCode(err), "failed to read document", err)
	}

	out := DocumentOutput{
		Collection: doc.Collection,
		ID:         doc.ID,
		Version:    doc.Version,
		Fields:     doc.Fields,
	}
	return formatter.Success(out, canonical(doc.Fields)+"\n")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list --db <db> [--collection <name>]",
		Short:         "List the document ids of a collection",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.addFlags(cmd, false)

	return cmd
}

func runList(opts *DocumentOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database, logger)
	if err != nil {
		return formatter.Fail(GetExitCode(err), ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st, logger)

	ids, err := st.Collection(opts.Collection, nil).IDs(commandContext(cmd))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to list documents", err)
	}

	var text strings.Builder
	for _, id := range ids {
		text.WriteString(id + "\n")
	}
	return formatter.Success(map[string]any{"collection": opts.Collection, "ids": ids}, text.String())
}

// cycleTokenGenerator resolves the --tokens flag.
func cycleTokenGenerator(name string) (watch.CycleTokenGenerator, error) {
	switch name {
	case "uuid":
		return watch.UUIDv7Generator{}, nil
	case "ulid":
		return watch.ULIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown token format %q: must be uuid or ulid", name)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
