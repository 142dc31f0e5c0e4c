package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/panopticon/internal/ir"
)

// wire marshals a computed diff for compact assertions.
func wire(t *testing.T, n Node) string {
	t.Helper()
	data, err := Marshal(n)
	require.NoError(t, err)
	return string(data)
}

func person(pairs ...any) ir.IRObject {
	obj := ir.IRObject{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v, err := ir.FromGo(pairs[i+1])
		if err != nil {
			panic(err)
		}
		obj[pairs[i].(string)] = v
	}
	return obj
}

func TestComputeEqualIsNil(t *testing.T) {
	before := person("name", "Adam", "pets", []any{map[string]any{"name": "Fido"}})
	after := ir.SnapshotObject(before)

	assert.Nil(t, Compute(before, after))
	assert.Nil(t, Compute(nil, nil))
}

func TestComputeScalarChanges(t *testing.T) {
	tests := []struct {
		name     string
		before   ir.IRObject
		after    ir.IRObject
		expected string
	}{
		{
			name:     "addition",
			before:   person("name", "Adam"),
			after:    person("name", "Adam", "email", "a@x.com"),
			expected: `{"email":["a@x.com"]}`,
		},
		{
			name:     "update",
			before:   person("name", "Adam"),
			after:    person("name", "Bert"),
			expected: `{"name":["Adam","Bert"]}`,
		},
		{
			name:     "deletion",
			before:   person("name", "Adam"),
			after:    person(),
			expected: `{"name":["Adam",0,0]}`,
		},
		{
			name:     "set to null is an update",
			before:   person("name", "Adam"),
			after:    person("name", nil),
			expected: `{"name":["Adam",null]}`,
		},
		{
			name:     "type change",
			before:   person("address", map[string]any{"line1": "A"}),
			after:    person("address", "somewhere"),
			expected: `{"address":[{"line1":"A"},"somewhere"]}`,
		},
		{
			name:     "array replaced by object",
			before:   person("tags", []any{"a"}),
			after:    person("tags", map[string]any{"a": true}),
			expected: `{"tags":[["a"],{"a":true}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, wire(t, Compute(tt.before, tt.after)))
		})
	}
}

func TestComputeNestedObject(t *testing.T) {
	before := person("address", map[string]any{"line1": "A", "line2": "X"})
	after := person("address", map[string]any{"line1": "B", "line2": "X"})

	n := Compute(before, after)
	assert.Equal(t, `{"address":{"line1":["A","B"]}}`, wire(t, n))

	obj, ok := n.(Object)
	require.True(t, ok)
	_, ok = obj["address"].(Object)
	assert.True(t, ok)
}

func TestComputeArrayAppend(t *testing.T) {
	before := person("pets", []any{})
	after := person("pets", []any{map[string]any{"name": "Fido"}})

	n := Compute(before, after)
	assert.Equal(t, `{"pets":{"0":[{"name":"Fido"}],"_t":"a"}}`, wire(t, n))

	_, ok := n.(Object)["pets"].(*Array)
	assert.True(t, ok)
}

func TestComputeArrayRemoveScalar(t *testing.T) {
	before := person("n", []any{1, 2, 3})
	after := person("n", []any{1, 3})

	assert.Equal(t, `{"n":{"_1":[2,0,0],"_t":"a"}}`, wire(t, Compute(before, after)))
}

func TestComputeArrayElementEditedByID(t *testing.T) {
	before := person("pets", []any{map[string]any{"id": "p1", "name": "Fido"}})
	after := person("pets", []any{map[string]any{"id": "p1", "name": "Rex"}})

	assert.Equal(t, `{"pets":{"0":{"name":["Fido","Rex"]},"_t":"a"}}`, wire(t, Compute(before, after)))
}

func TestComputeArrayElementWithoutIDIsReplaced(t *testing.T) {
	before := person("pets", []any{map[string]any{"name": "Fido"}})
	after := person("pets", []any{map[string]any{"name": "Rex"}})

	assert.Equal(t,
		`{"pets":{"0":[{"name":"Rex"}],"_0":[{"name":"Fido"},0,0],"_t":"a"}}`,
		wire(t, Compute(before, after)))
}

func TestComputeArrayReorderIsMove(t *testing.T) {
	a := map[string]any{"id": "a"}
	b := map[string]any{"id": "b"}
	c := map[string]any{"id": "c"}

	before := person("pets", []any{a, b, c})
	after := person("pets", []any{c, a, b})

	assert.Equal(t, `{"pets":{"_2":["",0,3],"_t":"a"}}`, wire(t, Compute(before, after)))
}

func TestComputeArrayMoveWithEdit(t *testing.T) {
	before := person("pets", []any{
		map[string]any{"id": "a", "name": "A"},
		map[string]any{"id": "b", "name": "B"},
		map[string]any{"id": "c", "name": "C"},
	})
	after := person("pets", []any{
		map[string]any{"id": "c", "name": "C2"},
		map[string]any{"id": "a", "name": "A"},
		map[string]any{"id": "b", "name": "B"},
	})

	assert.Equal(t,
		`{"pets":{"0":{"name":["C","C2"]},"_2":["",0,3],"_t":"a"}}`,
		wire(t, Compute(before, after)))
}

func TestComputeArrayReorderWithoutMoveDetection(t *testing.T) {
	before := person("n", []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	})
	after := person("n", []any{
		map[string]any{"id": "b"},
		map[string]any{"id": "a"},
	})

	n := Compute(before, after, WithoutMoveDetection())
	arr := n.(Object)["n"].(*Array)
	require.Equal(t, 2, arr.Len())
	for _, e := range arr.Entries() {
		rec, ok := e.Node.(Record)
		require.True(t, ok)
		assert.False(t, rec.IsMove())
	}
}

func TestComputeCustomObjectHash(t *testing.T) {
	byName := func(v ir.IRValue) string {
		if obj, ok := v.(ir.IRObject); ok {
			if s, ok := obj["name"].(ir.IRString); ok {
				return string(s)
			}
		}
		return ir.ElementHash(v)
	}

	before := person("pets", []any{map[string]any{"name": "Fido", "age": 1}})
	after := person("pets", []any{map[string]any{"name": "Fido", "age": 2}})

	assert.Equal(t,
		`{"pets":{"0":{"age":[1,2]},"_t":"a"}}`,
		wire(t, Compute(before, after, WithObjectHash(byName))))
}

func TestComputeMissingSides(t *testing.T) {
	assert.Equal(t, `["x"]`, wire(t, Compute(nil, ir.IRString("x"))))
	assert.Equal(t, `["x",0,0]`, wire(t, Compute(ir.IRString("x"), nil)))
}

func TestComputeFloatField(t *testing.T) {
	before, err := ir.ParseObject([]byte(`{"price": 1.5, "qty": 2}`))
	require.NoError(t, err)
	after, err := ir.ParseObject([]byte(`{"price": 1.75, "qty": 2.0}`))
	require.NoError(t, err)

	// 2 and 2.0 are the same number.
	assert.Equal(t, `{"price":[1.5,1.75]}`, wire(t, Compute(before, after)))
}

func TestComputeArrayOfFloats(t *testing.T) {
	before := person("rates", []any{0.1, 0.2})
	after := person("rates", []any{0.1, 0.25})

	assert.Equal(t, `{"rates":{"1":[0.25],"_1":[0.2,0,0],"_t":"a"}}`, wire(t, Compute(before, after)))
}
