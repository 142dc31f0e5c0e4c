package diff

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/panopticon/internal/ir"
)

// Node is one node of a diff tree: Record, Object or *Array.
type Node interface {
	diffNode()
}

// Magic numbers carried in the third slot of a three element record.
const (
	MagicDeleted = 0
	MagicMoved   = 3
)

// ArrayDiscriminator is the reserved key marking an array diff on the wire.
const ArrayDiscriminator = "_t"

// ArrayDiscriminatorValue is the value of ArrayDiscriminator for arrays.
const ArrayDiscriminatorValue = "a"

// Record is a compact change record for a single property.
// Its length encodes the kind of change; see the package documentation.
type Record []ir.IRValue

func (Record) diffNode() {}

// Added builds the record for a property absent before and present after.
func Added(v ir.IRValue) Record {
	return Record{v}
}

// Modified builds the record for a property present in both snapshots.
func Modified(before, after ir.IRValue) Record {
	return Record{before, after}
}

// Deleted builds the record for a property present before and absent after.
func Deleted(before ir.IRValue) Record {
	return Record{before, ir.IRInt(MagicDeleted), ir.IRInt(MagicDeleted)}
}

// Moved builds the array record for an element moved to index to.
func Moved(to int) Record {
	return Record{ir.IRString(""), ir.IRInt(to), ir.IRInt(MagicMoved)}
}

// IsMove reports whether r is an array move record.
func (r Record) IsMove() bool {
	if len(r) != 3 {
		return false
	}
	magic, ok := r[2].(ir.IRInt)
	return ok && magic == MagicMoved
}

// Object is a nested diff: the property is an object whose members changed.
type Object map[string]Node

func (Object) diffNode() {}

// Array is the diff of an ordered collection.
//
// Keys are "<i>" for entries addressed by index in the new array and
// "_<i>" for entries addressed by index in the old array. Array diffs are
// opaque to rule dispatch; handlers receive them whole.
type Array struct {
	Items map[string]Node
}

func (*Array) diffNode() {}

// NewArray creates an empty array diff.
func NewArray() *Array {
	return &Array{Items: make(map[string]Node)}
}

// ArrayEntry is one addressed item of an array diff.
type ArrayEntry struct {
	// Key is the raw key: "2" or "_2".
	Key string
	// Index is the numeric part of Key.
	Index int
	// Old is true for keys addressing the old array ("_" prefix).
	Old bool
	// Node is the record or nested diff at Key.
	Node Node
}

// Entries returns the array diff entries. Removals and moves (old indices)
// come first, then insertions and in-place changes (new indices), each group
// in ascending index order. This is the order in which a patch would apply them.
func (a *Array) Entries() []ArrayEntry {
	entries := make([]ArrayEntry, 0, len(a.Items))
	for key, node := range a.Items {
		entry := ArrayEntry{Key: key, Node: node}
		digits := key
		if strings.HasPrefix(key, "_") {
			entry.Old = true
			digits = key[1:]
		}
		idx, err := strconv.Atoi(digits)
		if err != nil {
			idx = -1
		}
		entry.Index = idx
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b ArrayEntry) int {
		if a.Old != b.Old {
			if a.Old {
				return -1
			}
			return 1
		}
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		return strings.Compare(a.Key, b.Key)
	})
	return entries
}

// Len returns the number of entries.
func (a *Array) Len() int {
	return len(a.Items)
}
