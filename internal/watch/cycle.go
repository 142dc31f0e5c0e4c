package watch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Cycle identifies one run of after-save dispatch.
type Cycle struct {
	Token string
	Seq   int64
}

// CycleTokenGenerator generates cycle tokens.
type CycleTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 cycle tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so audit rows sort
// by creation time even across process restarts.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
// It panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ULIDGenerator generates ULID cycle tokens: 26 characters of Crockford
// base32, lexically sortable, ordered by creation time.
//
// Thread-safety: ULIDGenerator is stateless and safe for concurrent use.
type ULIDGenerator struct{}

// Generate returns a new ULID string.
func (ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// FixedGenerator returns predetermined cycle tokens in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
//	gen := NewFixedGenerator("cycle-1", "cycle-2")
//	gen.Generate() // "cycle-1"
//	gen.Generate() // "cycle-2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
// It panics once all tokens have been consumed, so a test that saves more
// often than it expects fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

type cycleKey struct{}

// ContextWithCycle returns a context carrying c.
func ContextWithCycle(ctx context.Context, c Cycle) context.Context {
	return context.WithValue(ctx, cycleKey{}, c)
}

// CycleFromContext returns the cycle a handler is running in.
// ok is false outside of a dispatch.
func CycleFromContext(ctx context.Context) (c Cycle, ok bool) {
	c, ok = ctx.Value(cycleKey{}).(Cycle)
	return c, ok
}
