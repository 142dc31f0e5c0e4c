package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/panopticon/internal/dispatch"
	"github.com/roach88/panopticon/internal/ir"
)

// Call is one recorded handler invocation.
type Call struct {
	Path   string
	Kind   string
	Value  ir.IRValue
	Doc    *ir.Document
	Change dispatch.Change
}

// Recorder builds handlers that record their invocations in order.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handler returns a handler that records calls under path.
//
//	rec := testutil.NewRecorder()
//	rules := dispatch.Group{"name": rec.Handler("name")}
func (r *Recorder) Handler(path string) dispatch.Handler {
	return func(_ context.Context, doc *ir.Document, change dispatch.Change) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, Call{
			Path:   path,
			Kind:   dispatch.KindOf(change),
			Value:  dispatch.ValueOf(change),
			Doc:    doc,
			Change: change,
		})
	}
}

// HandlerAt is Handler for a path given as segments.
func (r *Recorder) HandlerAt(path []string) dispatch.Handler {
	return r.Handler(strings.Join(path, "."))
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Paths returns the path of every recorded call, in call order.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, len(r.calls))
	for i, c := range r.calls {
		paths[i] = c.Path
	}
	return paths
}

// Reset discards all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
