package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/panopticon/internal/diff"
	"github.com/roach88/panopticon/internal/ir"
)

// call is one recorded handler invocation.
type call struct {
	Doc    *ir.Document
	Change Change
}

// spy records the calls made to its handler.
type spy struct {
	calls []call
}

func (s *spy) handler() Handler {
	return func(_ context.Context, doc *ir.Document, c Change) {
		s.calls = append(s.calls, call{Doc: doc, Change: c})
	}
}

func parse(t *testing.T, data string) diff.Node {
	t.Helper()
	n, err := diff.Parse([]byte(data))
	require.NoError(t, err)
	return n
}

func testDoc() *ir.Document {
	return ir.NewDocument("people", "p1", ir.IRObject{"name": ir.IRString("Adam")})
}

func TestDispatchPropertyAddition(t *testing.T) {
	h := &spy{}
	rules := Group{"email": h.handler()}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"email":["a@x.com"]}`))
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, Set{Value: ir.IRString("a@x.com")}, h.calls[0].Change)
}

func TestDispatchPropertyUpdate(t *testing.T) {
	h := &spy{}
	rules := Group{"name": h.handler()}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"name":["Adam","Bert"]}`))
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, Set{Value: ir.IRString("Bert")}, h.calls[0].Change)
}

func TestDispatchPropertyDeletion(t *testing.T) {
	h := &spy{}
	rules := Group{"name": h.handler()}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"name":["Adam",0,0]}`))
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, Deleted{Old: ir.IRString("Adam")}, h.calls[0].Change)
	assert.NotEqual(t, Set{Value: ir.IRString("Adam")}, h.calls[0].Change)
}

func TestDispatchHandlerReceivesDocument(t *testing.T) {
	h := &spy{}
	doc := testDoc()

	err := Dispatch(context.Background(), doc, Group{"name": h.handler()}, parse(t, `{"name":["Adam","Bert"]}`))
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Same(t, doc, h.calls[0].Doc)
}

func TestDispatchNestedGroup(t *testing.T) {
	h := &spy{}
	rules := Group{"address": Group{"line1": h.handler()}}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"address":{"line1":["A","B"]}}`))
	require.NoError(t, err)
	require.Len(t, h.calls, 1)
	assert.Equal(t, Set{Value: ir.IRString("B")}, h.calls[0].Change)

	h.calls = nil
	err = Dispatch(context.Background(), testDoc(), rules, parse(t, `{"address":{"line2":["A","B"]}}`))
	require.NoError(t, err)
	assert.Empty(t, h.calls)
}

func TestDispatchArrayPassthrough(t *testing.T) {
	h := &spy{}
	rules := Group{"pets": h.handler()}
	node := parse(t, `{"pets":{"_t":"a","1":["Fido"]}}`)

	err := Dispatch(context.Background(), testDoc(), rules, node)
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	ac, ok := h.calls[0].Change.(ArrayChange)
	require.True(t, ok, "handler must receive the array diff, got %T", h.calls[0].Change)
	assert.Same(t, node.(diff.Object)["pets"], ac.Diff)
	assert.Equal(t, map[string]diff.Node{"1": diff.Added(ir.IRString("Fido"))}, ac.Diff.Items)
}

func TestDispatchNoMatchingKeys(t *testing.T) {
	h := &spy{}
	rules := Group{
		"name":    h.handler(),
		"address": Group{"line1": h.handler()},
	}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"email":["x"],"pets":{"_t":"a","0":["Fido"]}}`))
	require.NoError(t, err)
	assert.Empty(t, h.calls)
}

func TestDispatchNilDiff(t *testing.T) {
	h := &spy{}
	require.NoError(t, Dispatch(context.Background(), testDoc(), Group{"name": h.handler()}, nil))
	assert.Empty(t, h.calls)
}

func TestDispatchRootMustBeNestedDiff(t *testing.T) {
	h := &spy{}
	rules := Group{"name": h.handler()}

	err := Dispatch(context.Background(), testDoc(), rules, diff.Modified(ir.IRString("a"), ir.IRString("b")))
	require.Error(t, err)
	assert.True(t, IsInvalidDiffShapeError(err))

	err = Dispatch(context.Background(), testDoc(), rules, diff.NewArray())
	require.Error(t, err)
	assert.True(t, IsInvalidDiffShapeError(err))

	assert.Empty(t, h.calls)
}

func TestDispatchGroupAgainstRecordFails(t *testing.T) {
	h := &spy{}
	rules := Group{"address": Group{"line1": h.handler()}}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"address":["1 Main St",{"line1":"B"}]}`))
	require.Error(t, err)
	assert.True(t, IsInvalidDiffShapeError(err))

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []string{"address"}, de.Path)
	assert.Empty(t, h.calls)
}

func TestDispatchHandlerAgainstNestedDiffFails(t *testing.T) {
	h := &spy{}
	rules := Group{"address": h.handler()}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"address":{"line1":["A","B"]}}`))
	require.Error(t, err)
	assert.True(t, IsMalformedDiffError(err))
	assert.Empty(t, h.calls)
}

func TestDispatchGroupAgainstArrayDiffIsSilent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := &spy{}
	rules := Group{"pets": Group{"name": h.handler()}}

	d := New(WithLogger(logger))
	err := d.Dispatch(context.Background(), testDoc(), rules, parse(t, `{"pets":{"_t":"a","0":{"name":["Fido","Rex"]}}}`))
	require.NoError(t, err)
	assert.Empty(t, h.calls)
	assert.Contains(t, logs.String(), "rule group skipped")
	assert.Contains(t, logs.String(), "path=pets")
}

func TestDispatchNilRuleFailsWithoutDiffEntry(t *testing.T) {
	h := &spy{}
	var nilHandler Handler
	rules := Group{"name": h.handler(), "unused": nilHandler}

	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"name":["Adam","Bert"]}`))
	require.Error(t, err)
	assert.True(t, IsInvalidRuleShapeError(err))
}

func TestDispatchValidatesWholeRulesTree(t *testing.T) {
	var nilHandler Handler

	tests := []struct {
		name string
		node diff.Node
	}{
		{"nil diff", nil},
		{"unrelated change", parse(t, `{"name":["Adam","Bert"]}`)},
		{"record at the root", diff.Added(ir.IRString("x"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &spy{}
			rules := Group{
				"address": Group{"line1": nilHandler},
				"name":    h.handler(),
			}

			err := Dispatch(context.Background(), testDoc(), rules, tt.node)
			require.Error(t, err)
			assert.True(t, IsInvalidRuleShapeError(err))

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, []string{"address", "line1"}, de.Path)
			assert.Empty(t, h.calls)
		})
	}
}

func TestDispatchErrorAbortsRemainingKeys(t *testing.T) {
	first := &spy{}
	last := &spy{}
	rules := Group{
		"a": first.handler(),
		"b": Group{"x": first.handler()},
		"c": last.handler(),
	}

	// "b" is a record where a group is declared; "c" comes after it.
	err := Dispatch(context.Background(), testDoc(), rules, parse(t, `{"a":["1"],"b":["2"],"c":["3"]}`))
	require.Error(t, err)
	assert.True(t, IsInvalidDiffShapeError(err))

	assert.Len(t, first.calls, 1)
	assert.Empty(t, last.calls)
}

func TestDispatchSortedKeyOrderAndObserver(t *testing.T) {
	var order []string
	record := func(name string) Handler {
		return func(context.Context, *ir.Document, Change) {
			order = append(order, name)
		}
	}

	var firings []string
	d := New(WithObserver(func(_ context.Context, f Firing) {
		firings = append(firings, strings.Join(f.Path, ".")+"="+KindOf(f.Change))
	}))

	rules := Group{
		"zeta":    record("zeta"),
		"address": Group{"line2": record("line2"), "line1": record("line1")},
		"alpha":   record("alpha"),
	}
	node := parse(t, `{"zeta":[1],"alpha":[1,0,0],"address":{"line1":["A","B"],"line2":["C"]}}`)

	require.NoError(t, d.Dispatch(context.Background(), testDoc(), rules, node))

	assert.Equal(t, []string{"line1", "line2", "alpha", "zeta"}, order)
	assert.Equal(t, []string{"address.line1=set", "address.line2=set", "alpha=deleted", "zeta=set"}, firings)
}

func TestDispatchEndToEndWithCompute(t *testing.T) {
	h := &spy{}
	pets := &spy{}
	rules := Group{
		"name":    h.handler(),
		"address": Group{"line1": h.handler()},
		"pets":    pets.handler(),
	}

	before := ir.IRObject{
		"name":    ir.IRString("Adam"),
		"address": ir.IRObject{"line1": ir.IRString("A")},
		"pets":    ir.IRArray{},
	}
	after := ir.IRObject{
		"name":    ir.IRString("Bert"),
		"address": ir.IRObject{"line1": ir.IRString("B")},
		"pets":    ir.IRArray{ir.IRObject{"name": ir.IRString("Fido")}},
	}

	err := Dispatch(context.Background(), testDoc(), rules, diff.Compute(before, after))
	require.NoError(t, err)

	require.Len(t, h.calls, 2)
	assert.Equal(t, Set{Value: ir.IRString("B")}, h.calls[0].Change)
	assert.Equal(t, Set{Value: ir.IRString("Bert")}, h.calls[1].Change)

	require.Len(t, pets.calls, 1)
	_, ok := pets.calls[0].Change.(ArrayChange)
	assert.True(t, ok)
}
