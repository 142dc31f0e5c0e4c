package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes dispatch errors.
type ErrorCode string

const (
	// ErrCodeMalformedDiff indicates a change record that is not an ordered
	// sequence of one to three elements.
	ErrCodeMalformedDiff ErrorCode = "MALFORMED_DIFF"

	// ErrCodeInvalidRuleShape indicates a rules tree node that is neither a
	// handler nor a group (most often an array).
	ErrCodeInvalidRuleShape ErrorCode = "INVALID_RULE_SHAPE"

	// ErrCodeInvalidDiffShape indicates a change record where a rule group
	// expected a nested diff.
	ErrCodeInvalidDiffShape ErrorCode = "INVALID_DIFF_SHAPE"
)

// Error is returned for every shape disagreement between the rules tree, the
// diff tree and the document schema. These are configuration errors: they are
// surfaced to whatever triggered the save, never logged and skipped.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path is the rules/diff path at which the error was detected.
	Path []string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, strings.Join(e.Path, "."))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMalformedDiffError creates an Error for a malformed change record.
func NewMalformedDiffError(path []string, msg string) *Error {
	return &Error{Code: ErrCodeMalformedDiff, Path: clonePath(path), Message: msg}
}

// NewInvalidRuleShapeError creates an Error for an unusable rules tree node.
func NewInvalidRuleShapeError(path []string, msg string) *Error {
	return &Error{Code: ErrCodeInvalidRuleShape, Path: clonePath(path), Message: msg}
}

// NewInvalidDiffShapeError creates an Error for a diff node of the wrong shape.
func NewInvalidDiffShapeError(path []string, msg string) *Error {
	return &Error{Code: ErrCodeInvalidDiffShape, Path: clonePath(path), Message: msg}
}

// IsMalformedDiffError reports whether err is (or wraps) a MALFORMED_DIFF error.
func IsMalformedDiffError(err error) bool {
	return hasCode(err, ErrCodeMalformedDiff)
}

// IsInvalidRuleShapeError reports whether err is (or wraps) an INVALID_RULE_SHAPE error.
func IsInvalidRuleShapeError(err error) bool {
	return hasCode(err, ErrCodeInvalidRuleShape)
}

// IsInvalidDiffShapeError reports whether err is (or wraps) an INVALID_DIFF_SHAPE error.
func IsInvalidDiffShapeError(err error) bool {
	return hasCode(err, ErrCodeInvalidDiffShape)
}

// CodeOf returns the code of a dispatch error, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func clonePath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
