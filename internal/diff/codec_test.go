package diff

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/panopticon/internal/ir"
)

func TestParseShapes(t *testing.T) {
	n, err := Parse([]byte(`{
		"email": ["a@x.com"],
		"name": ["Adam", "Bert"],
		"old": ["gone", 0, 0],
		"address": {"line1": ["A", "B"]},
		"pets": {"_t": "a", "1": ["Fido"]}
	}`))
	require.NoError(t, err)

	obj, ok := n.(Object)
	require.True(t, ok)

	assert.Equal(t, Added(ir.IRString("a@x.com")), obj["email"])
	assert.Equal(t, Modified(ir.IRString("Adam"), ir.IRString("Bert")), obj["name"])
	assert.Equal(t, Deleted(ir.IRString("gone")), obj["old"])
	assert.Equal(t, Object{"line1": Modified(ir.IRString("A"), ir.IRString("B"))}, obj["address"])

	pets, ok := obj["pets"].(*Array)
	require.True(t, ok)
	assert.Equal(t, map[string]Node{"1": Added(ir.IRString("Fido"))}, pets.Items)
}

func TestParseNull(t *testing.T) {
	n, err := Parse([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestParseDiscriminatorMustBeA(t *testing.T) {
	// A document field literally named _t is an ordinary nested diff.
	n, err := Parse([]byte(`{"_t": ["x", "y"]}`))
	require.NoError(t, err)
	_, ok := n.(Object)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		path  string
	}{
		{"scalar at root", `"x"`, ""},
		{"scalar at key", `{"name": "x"}`, "name"},
		{"empty record", `{"name": []}`, "name"},
		{"long record", `{"name": [1, 2, 3, 4]}`, "name"},
		{"bad array key", `{"pets": {"_t": "a", "x": ["Fido"]}}`, "pets.x"},
		{"nested scalar", `{"a": {"b": true}}`, "a.b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.path, pe.Path)
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{`))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
}

func TestMarshalParseRoundTrip(t *testing.T) {
	before := ir.IRObject{
		"name": ir.IRString("Adam"),
		"pets": ir.IRArray{
			ir.IRObject{"id": ir.IRString("a")},
			ir.IRObject{"id": ir.IRString("b"), "name": ir.IRString("B")},
		},
		"address": ir.IRObject{"line1": ir.IRString("A")},
		"price":   ir.IRFloat(1.5),
	}
	after := ir.IRObject{
		"name":  ir.IRNull{},
		"price": ir.IRFloat(2.25),
		"pets": ir.IRArray{
			ir.IRObject{"id": ir.IRString("b"), "name": ir.IRString("B2")},
			ir.IRObject{"id": ir.IRString("a")},
			ir.IRString("new"),
		},
		"email": ir.IRString("a@x.com"),
	}

	n := Compute(before, after)
	require.NotNil(t, n)

	data, err := Marshal(n)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	if d := cmp.Diff(n, back); d != "" {
		t.Errorf("round trip mismatch (-computed +parsed):\n%s", d)
	}
}

func TestMarshalNil(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
