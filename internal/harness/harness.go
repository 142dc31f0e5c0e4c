package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/rulespec"
	"github.com/roach88/panopticon/internal/store"
	"github.com/roach88/panopticon/internal/testutil"
	"github.com/roach88/panopticon/internal/watch"
)

// ActionRecord is the action whose handlers append to the scenario trace.
const ActionRecord = "record"

// Harness is the scenario execution state.
type Harness struct {
	store  *store.Store
	coll   *store.Collection
	doc    *ir.Document
	result *Result
	step   int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Build the rules tree (or check the expected rules error)
//  2. Attach it to a schema with a fixed cycle token and a fresh clock
//  3. Create the document, then load it
//  4. Execute steps, checking each save's expectation
//  5. Evaluate assertions
//
// The returned error reports scenarios that cannot run at all, such as
// documents holding infinities; failed expectations land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, result: NewResult()}

	reg := rulespec.NewRegistry(rulespec.WithLogger(logger))
	if err := reg.Register(ActionRecord, h.recordAction); err != nil {
		return nil, err
	}

	spec, err := rulespec.FromMap(scenario.Rules, reg)
	if scenario.RulesError != "" {
		h.checkRulesError(scenario.RulesError, err)
		return h.result, nil
	}
	if err != nil {
		h.result.AddError(fmt.Sprintf("rules: %v", err))
		return h.result, nil
	}

	schema := watch.NewSchema()
	watch.Attach(schema, spec.Rules,
		watch.WithLogger(logger),
		watch.WithCycleTokens(testutil.NewFixedCycleGenerator(scenario.CycleToken)),
		watch.WithSequencer(testutil.NewDeterministicClock()))
	h.coll = st.Collection(scenario.collection(), schema)

	fields, err := ir.FromGo(orEmpty(scenario.Document))
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	if err := h.coll.Create(ctx, ir.NewDocument(scenario.collection(), scenario.id(), fields.(ir.IRObject))); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if h.doc, err = h.coll.Load(ctx, scenario.id()); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	for i, step := range scenario.Steps {
		h.step = i
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{Ctx: ctx, Collection: h.coll, ID: scenario.id()}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	for _, path := range sortedPaths(step.Set) {
		v, err := ir.FromGo(step.Set[path])
		if err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
		h.doc.Set(path, v)
	}
	for _, path := range step.Unset {
		h.doc.Unset(path)
	}

	if step.Save {
		saveErr := h.coll.Save(ctx, h.doc)
		if saveErr != nil {
			code := string(dispatch.CodeOf(saveErr))
			if code == "" {
				return saveErr
			}
			h.result.Trace = append(h.result.Trace, TraceEvent{Type: EventError, Step: h.step, Code: code})
		}
		h.checkExpect(step.Expect, saveErr)
	}

	if step.Reload {
		doc, err := h.coll.Load(ctx, h.doc.ID)
		if err != nil {
			return fmt.Errorf("reload: %w", err)
		}
		h.doc = doc
	}
	return nil
}

// recordAction is the factory of the record action.
func (h *Harness) recordAction(path []string) dispatch.Handler {
	dotted := strings.Join(path, ".")
	return func(ctx context.Context, _ *ir.Document, change dispatch.Change) {
		cycle, _ := watch.CycleFromContext(ctx)
		h.result.Trace = append(h.result.Trace, TraceEvent{
			Type:  EventCall,
			Step:  h.step,
			Cycle: cycle.Token,
			Seq:   cycle.Seq,
			Path:  dotted,
			Kind:  dispatch.KindOf(change),
			Value: dispatch.ValueOf(change),
		})
	}
}

func (h *Harness) checkExpect(expect *Expect, saveErr error) {
	if expect == nil {
		if saveErr != nil {
			h.result.AddError(fmt.Sprintf("step %d: unexpected save error: %v", h.step, saveErr))
		}
		return
	}

	got := string(dispatch.CodeOf(saveErr))
	if got != expect.Error {
		h.result.AddError(fmt.Sprintf("step %d: expected error %q, got %q", h.step, expect.Error, got))
	}

	calls := h.result.callsInStep(h.step)
	if len(calls) != len(expect.Calls) {
		h.result.AddError(fmt.Sprintf("step %d: expected %d calls, got %d (%s)",
			h.step, len(expect.Calls), len(calls), describeCalls(calls)))
		return
	}

	for i, want := range expect.Calls {
		call := calls[i]
		if call.Path != want.Path || call.Kind != want.Kind {
			h.result.AddError(fmt.Sprintf("step %d call %d: expected %s %s, got %s %s",
				h.step, i, want.Kind, want.Path, call.Kind, call.Path))
			continue
		}
		if !hasValue(want.Value) {
			continue
		}
		wantValue, err := decodeNode(&want.Value)
		if err != nil {
			h.result.AddError(fmt.Sprintf("step %d call %d: bad expected value: %v", h.step, i, err))
			continue
		}
		if !ir.Equal(wantValue, call.Value) {
			h.result.AddError(fmt.Sprintf("step %d call %d: %s expected value %s, got %s",
				h.step, i, want.Path, canonicalString(wantValue), canonicalString(call.Value)))
		}
	}
}

func (h *Harness) checkRulesError(want string, err error) {
	got := string(dispatch.CodeOf(err))
	if got != want {
		h.result.AddError(fmt.Sprintf("rules: expected error %q, got %q (%v)", want, got, err))
		return
	}
	h.result.Trace = append(h.result.Trace, TraceEvent{Type: EventError, Step: -1, Code: got})
}

func describeCalls(calls []TraceEvent) string {
	if len(calls) == 0 {
		return "none"
	}
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = c.Kind + " " + c.Path
	}
	return strings.Join(parts, ", ")
}

func canonicalString(v ir.IRValue) string {
	if v == nil {
		return "<missing>"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func sortedPaths(m map[string]any) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
