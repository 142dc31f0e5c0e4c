package watch

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/panopticon/internal/ir"
)

// HookPoint names a lifecycle event of a persisted document.
type HookPoint string

const (
	// BeforeLoad fires after a document is read from storage and before it
	// is handed to the caller.
	BeforeLoad HookPoint = "before_load"

	// AfterSave fires after a document has been written.
	AfterSave HookPoint = "after_save"
)

// Hook runs at a hook point. A returned error aborts the remaining hooks and
// is propagated to whatever triggered the event.
type Hook func(ctx context.Context, doc *ir.Document) error

// Schema is a registry of hooks for one collection of documents.
//
// Thread-safety: On and Fire may be called concurrently.
type Schema struct {
	mu    sync.RWMutex
	hooks map[HookPoint][]Hook
}

// NewSchema creates a schema with no hooks.
func NewSchema() *Schema {
	return &Schema{hooks: make(map[HookPoint][]Hook)}
}

// On registers a hook. Hooks fire in registration order.
func (s *Schema) On(point HookPoint, hook Hook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[point] = append(s.hooks[point], hook)
}

// Fire runs the hooks registered for point, stopping at the first error.
func (s *Schema) Fire(ctx context.Context, point HookPoint, doc *ir.Document) error {
	s.mu.RLock()
	hooks := append([]Hook(nil), s.hooks[point]...)
	s.mu.RUnlock()

	for i, hook := range hooks {
		if err := hook(ctx, doc); err != nil {
			return fmt.Errorf("%s hook %d: %w", point, i, err)
		}
	}
	return nil
}

// Len returns the number of hooks registered for point.
func (s *Schema) Len(point HookPoint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hooks[point])
}
