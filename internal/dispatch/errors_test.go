package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewInvalidRuleShapeError([]string{"pets", "name"}, "a rule cannot be an array")
	assert.Equal(t, "INVALID_RULE_SHAPE: a rule cannot be an array (path=pets.name)", err.Error())

	err = NewInvalidDiffShapeError(nil, "diff cannot be a change record at the root")
	assert.Equal(t, "INVALID_DIFF_SHAPE: diff cannot be a change record at the root", err.Error())
}

func TestErrorPredicatesSeeWrappedErrors(t *testing.T) {
	base := NewMalformedDiffError([]string{"name"}, "bad")
	wrapped := fmt.Errorf("after save: %w", base)

	assert.True(t, IsMalformedDiffError(wrapped))
	assert.False(t, IsInvalidRuleShapeError(wrapped))
	assert.False(t, IsInvalidDiffShapeError(wrapped))
	assert.Equal(t, ErrCodeMalformedDiff, CodeOf(wrapped))

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("other")))
	assert.False(t, IsMalformedDiffError(nil))
}

func TestErrorPathIsCopied(t *testing.T) {
	path := []string{"a", "b"}
	err := NewInvalidDiffShapeError(path, "x")
	path[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, err.Path)
}
