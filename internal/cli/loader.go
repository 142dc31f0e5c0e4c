package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/rulespec"
	"github.com/roach88/panopticon/internal/store"
)

// ActionAudit is the action whose handlers append to the store's audit log.
const ActionAudit = "audit"

// readValue reads a JSON file into a plain value.
func readValue(path string) (ir.IRValue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := ir.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// readObject reads a JSON file holding a document body.
func readObject(path string) (ir.IRObject, error) {
	v, err := readValue(path)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("%s: expected JSON object, got %s", path, ir.KindOf(v))
	}
	return obj, nil
}

// newRegistry returns the action registry of the CLI. With a store, the
// audit action appends to its audit log; without one it does nothing, so
// rules files naming it can still be validated and dry-run.
func newRegistry(logger *slog.Logger, st *store.Store) *rulespec.Registry {
	reg := rulespec.NewRegistry(rulespec.WithLogger(logger))

	factory := rulespec.ActionFactory(func([]string) dispatch.Handler {
		return func(context.Context, *ir.Document, dispatch.Change) {}
	})
	if st != nil {
		factory = st.AuditHandler
	}
	// The registry is fresh; registration cannot collide.
	_ = reg.Register(ActionAudit, factory)
	return reg
}

// loadRules compiles a CUE rules file or package directory.
func loadRules(path string, reg *rulespec.Registry) (*rulespec.Spec, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "rules not found", err)
	}
	spec, err := rulespec.Load(path, reg)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid rules", err)
	}
	return spec, nil
}

// openExistingStore opens a database that must already exist.
func openExistingStore(path string, logger *slog.Logger) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// storeErrorCode maps store sentinels to JSON error codes.
func storeErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return ErrCodeConflict
	case dispatch.CodeOf(err) != "":
		return string(dispatch.CodeOf(err))
	default:
		return ErrCodeStore
	}
}

// errorCode returns the code to report for err: the dispatch code when err
// carries one, fallback otherwise.
func errorCode(err error, fallback string) string {
	if code := dispatch.CodeOf(err); code != "" {
		return string(code)
	}
	return fallback
}

func canonical(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
