package rulespec

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
)

// ActionFactory creates the handler bound at a rules path.
type ActionFactory func(path []string) dispatch.Handler

// Built-in action names.
const (
	ActionLog    = "log"
	ActionIgnore = "ignore"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by the log action. Default: slog.Default().
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry maps action names to handler factories.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ActionFactory
	logger  *slog.Logger
}

// NewRegistry creates a registry holding the built-in actions.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		actions: make(map[string]ActionFactory),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.actions[ActionLog] = r.logAction
	r.actions[ActionIgnore] = ignoreAction
	return r
}

// Register adds an action. Registering an existing name replaces it.
func (r *Registry) Register(name string, f ActionFactory) error {
	if name == "" {
		return fmt.Errorf("action name is empty")
	}
	if f == nil {
		return fmt.Errorf("action %q: factory is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.actions[name]
	return f, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// bind resolves name into the handler for path.
func (r *Registry) bind(name string, path []string) (dispatch.Handler, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown action %q (registered: %s)", name, strings.Join(r.Names(), ", "))
	}
	h := f(slices.Clone(path))
	if h == nil {
		return nil, dispatch.NewInvalidRuleShapeError(path, fmt.Sprintf("action %q produced a nil handler", name))
	}
	return h, nil
}

func (r *Registry) logAction(path []string) dispatch.Handler {
	dotted := strings.Join(path, ".")
	return func(ctx context.Context, doc *ir.Document, change dispatch.Change) {
		value := "null"
		if data, err := ir.MarshalCanonical(dispatch.ValueOf(change)); err == nil {
			value = string(data)
		}
		r.logger.InfoContext(ctx, "document changed",
			"collection", doc.Collection,
			"id", doc.ID,
			"path", dotted,
			"kind", dispatch.KindOf(change),
			"value", value)
	}
}

func ignoreAction([]string) dispatch.Handler {
	return func(context.Context, *ir.Document, dispatch.Change) {}
}
