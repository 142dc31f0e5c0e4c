package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentOriginalLifecycle(t *testing.T) {
	doc := NewDocument("people", "p1", IRObject{"name": IRString("Adam")})

	_, ok := doc.Original()
	assert.False(t, ok, "fresh document has no original")

	doc.CaptureOriginal()
	doc.Fields["name"] = IRString("Bert")

	orig, ok := doc.Original()
	require.True(t, ok)
	assert.Equal(t, IRString("Adam"), orig["name"])

	// Reading does not clear it.
	_, ok = doc.Original()
	assert.True(t, ok)
}

func TestDocumentNilFields(t *testing.T) {
	doc := NewDocument("people", "p1", nil)
	require.NotNil(t, doc.Fields)
	doc.CaptureOriginal()
	orig, ok := doc.Original()
	require.True(t, ok)
	assert.Empty(t, orig)
}

func TestDocumentGetSetUnset(t *testing.T) {
	doc := NewDocument("people", "p1", IRObject{"name": IRString("Adam")})

	doc.Set("address.line1", IRString("1 Main St"))
	v, ok := doc.Get("address.line1")
	require.True(t, ok)
	assert.Equal(t, IRString("1 Main St"), v)

	doc.Set("name.first", IRString("A"))
	v, ok = doc.Get("name")
	require.True(t, ok)
	assert.Equal(t, IRObject{"first": IRString("A")}, v)

	doc.Unset("address.line1")
	_, ok = doc.Get("address.line1")
	assert.False(t, ok)
	v, ok = doc.Get("address")
	require.True(t, ok)
	assert.Equal(t, IRObject{}, v)

	doc.Unset("missing.path")
	_, ok = doc.Get("name.first.deeper")
	assert.False(t, ok)
}

func TestDocumentGetRoot(t *testing.T) {
	doc := NewDocument("people", "p1", IRObject{"a": IRInt(1)})
	v, ok := doc.Get("")
	require.True(t, ok)
	assert.Equal(t, doc.Fields, v)
}

func TestSplitPath(t *testing.T) {
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, []string{"a", "b"}, SplitPath("a.b"))
}
