package harness

import "github.com/roach88/panopticon/internal/ir"

// Trace event types.
const (
	EventCall  = "call"
	EventError = "error"
)

// TraceEvent is one entry of the scenario trace: a recorded handler call or
// a save that failed.
type TraceEvent struct {
	Type  string     `json:"type"`
	Step  int        `json:"step"`
	Cycle string     `json:"cycle,omitempty"`
	Seq   int64      `json:"seq,omitempty"`
	Path  string     `json:"path,omitempty"`
	Kind  string     `json:"kind,omitempty"`
	Value ir.IRValue `json:"value,omitempty"`
	Code  string     `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the recorded calls and save errors in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the call events of the trace.
func (r *Result) Calls() []TraceEvent {
	var calls []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventCall {
			calls = append(calls, e)
		}
	}
	return calls
}

func (r *Result) callsInStep(step int) []TraceEvent {
	var calls []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventCall && e.Step == step {
			calls = append(calls, e)
		}
	}
	return calls
}
