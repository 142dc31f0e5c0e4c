package harness

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/panopticon/internal/ir"
	"github.com/roach88/panopticon/internal/store"
)

// Assertion type constants.
const (
	AssertFired      = "fired"
	AssertNotFired   = "not_fired"
	AssertFireCount  = "fire_count"
	AssertFireOrder  = "fire_order"
	AssertFinalState = "final_state"
)

// Assertion validates the whole trace or the stored document.
type Assertion struct {
	// Type is one of fired, not_fired, fire_count, fire_order, final_state.
	Type string `yaml:"type"`

	// Path is the handler path (fired, not_fired, fire_count) or the
	// document field path (final_state).
	Path string `yaml:"path,omitempty"`

	// Kind optionally narrows fired to one change kind.
	Kind string `yaml:"kind,omitempty"`

	// Count is the exact number of calls (fire_count).
	Count int `yaml:"count,omitempty"`

	// Paths is the expected order of first calls (fire_order).
	Paths []string `yaml:"paths,omitempty"`

	// Value is the expected stored value (final_state).
	Value yaml.Node `yaml:"value,omitempty"`

	// Absent expects the field to be missing (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// AssertionContext gives assertions access to the stored document.
type AssertionContext struct {
	Ctx        context.Context
	Collection *store.Collection
	ID         string
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventCall {
				fmt.Fprintf(&buf, "  [%d] step %d %s %s\n", i+1, event.Step, event.Kind, event.Path)
			} else {
				fmt.Fprintf(&buf, "  [%d] step %d error %s\n", i+1, event.Step, event.Code)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions runs all assertions and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFired:
		return assertFired(result.Trace, a)
	case AssertNotFired:
		return assertNotFired(result.Trace, a)
	case AssertFireCount:
		return assertFireCount(result.Trace, a)
	case AssertFireOrder:
		return assertFireOrder(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFired, AssertNotFired, AssertFireCount:
		if a.Path == "" {
			return fmt.Errorf("%s requires path", a.Type)
		}
	case AssertFireOrder:
		if len(a.Paths) < 2 {
			return fmt.Errorf("%s requires at least two paths", a.Type)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("%s requires path", a.Type)
		}
		if hasValue(a.Value) == a.Absent {
			return fmt.Errorf("%s requires exactly one of value or absent", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// assertFired checks that path was called at least once, optionally with
// the given kind.
func assertFired(trace []TraceEvent, a Assertion) error {
	for _, e := range trace {
		if e.Type == EventCall && e.Path == a.Path && (a.Kind == "" || e.Kind == a.Kind) {
			return nil
		}
	}

	expected := "call of " + a.Path
	if a.Kind != "" {
		expected += " with kind " + a.Kind
	}
	return &AssertionError{Type: AssertFired, Expected: expected, Actual: "not found in trace", Trace: trace}
}

func assertNotFired(trace []TraceEvent, a Assertion) error {
	for i, e := range trace {
		if e.Type == EventCall && e.Path == a.Path {
			return &AssertionError{
				Type:     AssertNotFired,
				Expected: "no call of " + a.Path,
				Actual:   fmt.Sprintf("called at trace position %d", i+1),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertFireCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type == EventCall && e.Path == a.Path {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertFireCount,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Path),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFireOrder checks that the first calls of the paths appear in order.
// Other calls may appear in between.
func assertFireOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range trace {
		if e.Type != EventCall {
			continue
		}
		if _, seen := positions[e.Path]; !seen {
			positions[e.Path] = i + 1 // 1-indexed for readability
		}
	}

	for _, p := range a.Paths {
		if positions[p] == 0 {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("all paths called: %v", a.Paths),
				Actual:   "missing call of " + p,
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Paths); i++ {
		prev, curr := a.Paths[i-1], a.Paths[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Paths),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFinalState reads the stored document, bypassing hooks, and checks
// one field.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Collection == nil {
		return fmt.Errorf("final_state assertion requires a stored document")
	}

	doc, err := actx.Collection.Get(actx.Ctx, actx.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "stored document " + actx.ID,
			Actual:   err.Error(),
		}
	}

	got, exists := doc.Get(a.Path)
	if a.Absent {
		if exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: a.Path + " absent",
				Actual:   canonicalString(got),
			}
		}
		return nil
	}

	want, err := decodeNode(&a.Value)
	if err != nil {
		return fmt.Errorf("final_state %s: bad expected value: %w", a.Path, err)
	}
	if !exists {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, canonicalString(want)),
			Actual:   "field not found",
		}
	}
	if !ir.Equal(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, canonicalString(want)),
			Actual:   canonicalString(got),
		}
	}
	return nil
}
