package dispatch

import (
	"fmt"

	"github.com/roach88/panopticon/internal/diff"
	"github.com/roach88/panopticon/internal/ir"
)

// Change is the argument a handler receives: Set, Deleted or ArrayChange.
type Change interface {
	change()
}

// Set carries the new value of an added or updated property.
// Value may be ir.IRNull when the property was explicitly set to null.
type Set struct {
	Value ir.IRValue
}

func (Set) change() {}

// Deleted signals that the property was removed. It is distinct from a
// Set holding ir.IRNull. Old is the value before removal, when the record
// carried one.
type Deleted struct {
	Old ir.IRValue
}

func (Deleted) change() {}

// ArrayChange carries an ordered-collection diff, unmodified.
// The handler interprets the per-index entries itself.
type ArrayChange struct {
	Diff *diff.Array
}

func (ArrayChange) change() {}

// Decode extracts the new value from a single change record.
//
//	[new]        -> Set{new}
//	[old, new]   -> Set{new}
//	[old, 0, 0]  -> Deleted{old}
//
// Any three-element record decodes as Deleted. Anything that is not a record
// of one to three elements is a MalformedDiffError.
func Decode(n diff.Node) (Change, error) {
	return decodeAt(nil, n)
}

func decodeAt(path []string, n diff.Node) (Change, error) {
	rec, ok := n.(diff.Record)
	if !ok {
		return nil, NewMalformedDiffError(path, fmt.Sprintf("change record must be an ordered sequence, got %s", nodeKind(n)))
	}

	switch len(rec) {
	case 3:
		return Deleted{Old: rec[0]}, nil
	case 1, 2:
		return Set{Value: rec[len(rec)-1]}, nil
	default:
		return nil, NewMalformedDiffError(path, fmt.Sprintf("change record has %d elements, want 1 to 3", len(rec)))
	}
}

// KindOf names a change variant: "set", "deleted" or "array".
func KindOf(c Change) string {
	switch c.(type) {
	case Set:
		return "set"
	case Deleted:
		return "deleted"
	case ArrayChange:
		return "array"
	default:
		return fmt.Sprintf("%T", c)
	}
}

// ValueOf returns the plain value carried by a change, for logging and audit:
// the new value for Set, the old value for Deleted, and the wire form of the
// array diff for ArrayChange.
func ValueOf(c Change) ir.IRValue {
	switch ch := c.(type) {
	case Set:
		return ch.Value
	case Deleted:
		return ch.Old
	case ArrayChange:
		return diff.ToValue(ch.Diff)
	default:
		return nil
	}
}

func nodeKind(n diff.Node) string {
	switch n.(type) {
	case nil:
		return "nothing"
	case diff.Record:
		return "change record"
	case diff.Object:
		return "nested diff"
	case *diff.Array:
		return "array diff"
	default:
		return fmt.Sprintf("%T", n)
	}
}
