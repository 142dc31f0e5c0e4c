package watch

import (
	"context"
	"log/slog"

	"github.com/roach88/panopticon/internal/diff"
	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
)

// Sequencer hands out cycle sequence numbers. *Clock implements it.
type Sequencer interface {
	Next() int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithObjectHash sets the identity function used to match array elements.
// Default: ir.ElementHash.
func WithObjectHash(h diff.HashFunc) Option {
	return func(w *Watcher) {
		if h != nil {
			w.hash = h
		}
	}
}

// WithObserver registers an observer that sees every handler firing.
func WithObserver(o dispatch.Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

// WithCycleTokens sets the cycle token generator. Default: UUIDv7Generator.
func WithCycleTokens(g CycleTokenGenerator) Option {
	return func(w *Watcher) {
		if g != nil {
			w.tokens = g
		}
	}
}

// WithSequencer sets the source of cycle sequence numbers. Default: a fresh
// Clock.
func WithSequencer(s Sequencer) Option {
	return func(w *Watcher) {
		if s != nil {
			w.seq = s
		}
	}
}

// Watcher dispatches a rules tree whenever a document of its schema is
// saved after having been loaded.
type Watcher struct {
	rules      dispatch.Group
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	hash       diff.HashFunc
	observer   dispatch.Observer
	tokens     CycleTokenGenerator
	seq        Sequencer
}

// Attach registers the snapshot and dispatch hooks for rules on schema.
//
// The rules tree is used as-is; callers that build it dynamically should
// pass it through dispatch.Build or rulespec first. Shape errors that remain
// surface on the first save that reaches them.
func Attach(schema *Schema, rules dispatch.Group, opts ...Option) *Watcher {
	w := &Watcher{
		rules:  rules,
		logger: slog.Default(),
		hash:   ir.ElementHash,
		tokens: UUIDv7Generator{},
		seq:    NewClock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.dispatcher = dispatch.New(
		dispatch.WithLogger(w.logger),
		dispatch.WithObserver(w.observer),
	)

	schema.On(BeforeLoad, w.beforeLoad)
	schema.On(AfterSave, w.afterSave)
	return w
}

func (w *Watcher) beforeLoad(_ context.Context, doc *ir.Document) error {
	doc.CaptureOriginal()
	return nil
}

func (w *Watcher) afterSave(ctx context.Context, doc *ir.Document) error {
	original, ok := doc.Original()
	if !ok {
		return nil
	}

	updated := ir.Snapshot(doc.Fields)
	node := diff.Compute(original, updated, diff.WithObjectHash(w.hash))
	if node == nil {
		return nil
	}

	cycle := Cycle{Token: w.tokens.Generate(), Seq: w.seq.Next()}
	w.logger.DebugContext(ctx, "dispatch cycle",
		"cycle", cycle.Token,
		"seq", cycle.Seq,
		"collection", doc.Collection,
		"id", doc.ID)

	return w.dispatcher.Dispatch(ContextWithCycle(ctx, cycle), doc, w.rules, node)
}

// Rules returns the rules tree the watcher dispatches.
func (w *Watcher) Rules() dispatch.Group {
	return w.rules
}
