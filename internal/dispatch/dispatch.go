package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/panopticon/internal/diff"
	"github.com/roach88/panopticon/internal/ir"
)

// Firing describes one handler invocation.
type Firing struct {
	Path   []string
	Change Change
}

// Observer is notified of every firing just before the handler runs.
type Observer func(ctx context.Context, f Firing)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver registers an observer for firings. Tracing and the CLI use it.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// Dispatcher walks rules trees against diff trees.
// It holds configuration only and is safe for concurrent use if its
// observer is.
type Dispatcher struct {
	logger   *slog.Logger
	observer Observer
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch calls the handlers of rules whose paths changed in node.
//
// The whole rules tree is validated first, so a nil rule fails with
// InvalidRuleShapeError even where nothing changed. A nil node means nothing
// changed. Otherwise node must be a nested diff: a change record (or array
// diff) at the root cannot be correlated with a rules tree and fails with
// InvalidDiffShapeError.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *ir.Document, rules Group, node diff.Node) error {
	if err := rules.Validate(); err != nil {
		return err
	}

	switch root := node.(type) {
	case nil:
		return nil
	case diff.Object:
		return d.dispatch(ctx, doc, rules, root, nil)
	case diff.Record:
		return NewInvalidDiffShapeError(nil, "diff cannot be a change record at the root")
	default:
		return NewInvalidDiffShapeError(nil, "diff cannot be an array diff at the root")
	}
}

// Dispatch runs rules against node with a default Dispatcher.
func Dispatch(ctx context.Context, doc *ir.Document, rules Group, node diff.Node) error {
	return New().Dispatch(ctx, doc, rules, node)
}

func (d *Dispatcher) dispatch(ctx context.Context, doc *ir.Document, rules Group, node diff.Object, prefix []string) error {
	for _, key := range sortedKeys(rules) {
		path := appendPath(prefix, key)
		rule := rules[key]

		child, ok := node[key]
		if !ok || child == nil {
			continue
		}

		switch r := rule.(type) {
		case Handler:
			var change Change
			if arr, isArray := child.(*diff.Array); isArray {
				change = ArrayChange{Diff: arr}
			} else {
				var err error
				change, err = decodeAt(path, child)
				if err != nil {
					return err
				}
			}
			d.fire(ctx, doc, r, path, change)

		case Group:
			switch c := child.(type) {
			case diff.Object:
				if err := d.dispatch(ctx, doc, r, c, path); err != nil {
					return err
				}
			case *diff.Array:
				d.logger.DebugContext(ctx, "rule group skipped: document holds an array at this path",
					"path", strings.Join(path, "."))
			default:
				return NewInvalidDiffShapeError(path, "diff cannot be a change record where a rule group is declared")
			}
		}
	}
	return nil
}

func (d *Dispatcher) fire(ctx context.Context, doc *ir.Document, h Handler, path []string, change Change) {
	if d.observer != nil {
		d.observer(ctx, Firing{Path: path, Change: change})
	}
	h(ctx, doc, change)
}
