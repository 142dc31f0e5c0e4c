package dispatch

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/panopticon/internal/ir"
)

// Rule is a rules tree node: a Handler or a Group.
type Rule interface {
	rule()
}

// Handler is a leaf rule. It runs once per cycle in which its path changed,
// with the saved document and the decoded change.
type Handler func(ctx context.Context, doc *ir.Document, change Change)

func (Handler) rule() {}

// Group is a nested rules tree keyed by property name.
type Group map[string]Rule

func (Group) rule() {}

// Paths returns the dotted paths of all handlers in the tree, sorted.
func (g Group) Paths() []string {
	var paths []string
	g.walk(nil, func(path []string) {
		paths = append(paths, strings.Join(path, "."))
	})
	slices.Sort(paths)
	return paths
}

func (g Group) walk(prefix []string, fn func(path []string)) {
	for _, key := range sortedKeys(g) {
		path := appendPath(prefix, key)
		switch r := g[key].(type) {
		case Handler:
			fn(path)
		case Group:
			r.walk(path, fn)
		}
	}
}

// Validate checks that every node of the tree is a non-nil handler or group.
func (g Group) Validate() error {
	for _, key := range sortedKeys(g) {
		path := []string{key}
		if err := validateRule(path, g[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(path []string, r Rule) error {
	switch rule := r.(type) {
	case Handler:
		if rule == nil {
			return NewInvalidRuleShapeError(path, "handler is nil")
		}
		return nil
	case Group:
		for _, key := range sortedKeys(rule) {
			if err := validateRule(appendPath(path, key), rule[key]); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewInvalidRuleShapeError(path, "rule is nil")
	}
}

// Build converts a dynamically typed rules tree into a Group.
//
// Accepted leaves are Handler values and plain
// func(context.Context, *ir.Document, Change) functions. Accepted groups are
// Group, map[string]Rule and map[string]any. A slice or array anywhere in the
// tree is an InvalidRuleShapeError: a rule cannot be an array. So is any
// other value, including nil.
func Build(raw map[string]any) (Group, error) {
	return buildGroup(nil, raw)
}

func buildGroup(path []string, raw map[string]any) (Group, error) {
	g := make(Group, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		r, err := buildRule(appendPath(path, key), raw[key])
		if err != nil {
			return nil, err
		}
		g[key] = r
	}
	return g, nil
}

func buildRule(path []string, v any) (Rule, error) {
	switch val := v.(type) {
	case Handler:
		if val == nil {
			return nil, NewInvalidRuleShapeError(path, "handler is nil")
		}
		return val, nil
	case func(context.Context, *ir.Document, Change):
		if val == nil {
			return nil, NewInvalidRuleShapeError(path, "handler is nil")
		}
		return Handler(val), nil
	case Group:
		if err := validateRule(path, val); err != nil {
			return nil, err
		}
		return val, nil
	case map[string]Rule:
		g := Group(val)
		if err := validateRule(path, g); err != nil {
			return nil, err
		}
		return g, nil
	case map[string]any:
		return buildGroup(path, val)
	case nil:
		return nil, NewInvalidRuleShapeError(path, "rule is nil")
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return nil, NewInvalidRuleShapeError(path, "a rule cannot be an array")
	default:
		return nil, NewInvalidRuleShapeError(path, fmt.Sprintf("rule must be a handler or a group, got %T", v))
	}
}

func sortedKeys(g Group) []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// appendPath returns prefix+key without aliasing prefix's backing array.
func appendPath(prefix []string, key string) []string {
	out := make([]string, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = key
	return out
}
