package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/panopticon/internal/ir"
)

// ParseError reports a delta that does not follow the wire format.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid delta: %s", e.Message)
	}
	return fmt.Sprintf("invalid delta at %s: %s", e.Path, e.Message)
}

// ToValue converts a diff tree into its wire form as a plain value.
// A nil node converts to nil.
func ToValue(n Node) ir.IRValue {
	switch node := n.(type) {
	case Record:
		return ir.IRArray(node)
	case Object:
		obj := make(ir.IRObject, len(node))
		for k, child := range node {
			obj[k] = ToValue(child)
		}
		return obj
	case *Array:
		obj := make(ir.IRObject, len(node.Items)+1)
		obj[ArrayDiscriminator] = ir.IRString(ArrayDiscriminatorValue)
		for k, child := range node.Items {
			obj[k] = ToValue(child)
		}
		return obj
	default:
		return nil
	}
}

// Marshal encodes a diff tree as canonical jsondiffpatch JSON.
// A nil node (no change) encodes as null.
func Marshal(n Node) ([]byte, error) {
	v := ToValue(n)
	if v == nil {
		return []byte("null"), nil
	}
	return ir.MarshalCanonical(v)
}

// Parse decodes jsondiffpatch JSON. A JSON null decodes to a nil node.
func Parse(data []byte) (Node, error) {
	v, err := ir.ParseJSON(data)
	if err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if _, ok := v.(ir.IRNull); ok {
		return nil, nil
	}
	return FromValue(v)
}

// FromValue decodes a delta held as a plain value.
func FromValue(v ir.IRValue) (Node, error) {
	return fromValue(v, "")
}

func fromValue(v ir.IRValue, path string) (Node, error) {
	switch val := v.(type) {
	case ir.IRArray:
		if len(val) < 1 || len(val) > 3 {
			return nil, &ParseError{Path: path, Message: fmt.Sprintf("change record has %d elements, want 1 to 3", len(val))}
		}
		return Record(val), nil

	case ir.IRObject:
		if disc, ok := val[ArrayDiscriminator]; ok {
			if s, isStr := disc.(ir.IRString); isStr && s == ArrayDiscriminatorValue {
				return arrayFromValue(val, path)
			}
		}
		obj := make(Object, len(val))
		for _, k := range val.SortedKeys() {
			child, err := fromValue(val[k], joinPath(path, k))
			if err != nil {
				return nil, err
			}
			obj[k] = child
		}
		return obj, nil

	default:
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("expected change record or object, got %s", ir.KindOf(v))}
	}
}

func arrayFromValue(val ir.IRObject, path string) (*Array, error) {
	arr := NewArray()
	for _, k := range val.SortedKeys() {
		if k == ArrayDiscriminator {
			continue
		}
		if !isArrayKey(k) {
			return nil, &ParseError{Path: joinPath(path, k), Message: "array delta key must be an index or _index"}
		}
		child, err := fromValue(val[k], joinPath(path, k))
		if err != nil {
			return nil, err
		}
		arr.Items[k] = child
	}
	return arr, nil
}

func isArrayKey(k string) bool {
	digits := strings.TrimPrefix(k, "_")
	if digits == "" {
		return false
	}
	_, err := strconv.Atoi(digits)
	return err == nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
