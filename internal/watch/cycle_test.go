package watch

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Format(t *testing.T) {
	token := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, token, 36)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		token := gen.Generate()
		require.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
}

func TestULIDGenerator_Format(t *testing.T) {
	gen := ULIDGenerator{}
	seen := make(map[string]bool)
	var prevTime uint64
	for i := 0; i < 500; i++ {
		token := gen.Generate()
		assert.Len(t, token, 26)

		id, err := ulid.Parse(token)
		require.NoError(t, err)
		require.GreaterOrEqual(t, id.Time(), prevTime, "timestamps must not go backwards")
		prevTime = id.Time()

		require.False(t, seen[token], "token %s generated twice", token)
		seen[token] = true
	}
}

func TestFixedGenerator_InOrderThenPanics(t *testing.T) {
	gen := NewFixedGenerator("cycle-1", "cycle-2")
	assert.Equal(t, "cycle-1", gen.Generate())
	assert.Equal(t, "cycle-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestFixedGenerator_Concurrent(t *testing.T) {
	tokens := make([]string, 100)
	for i := range tokens {
		tokens[i] = uuid.NewString()
	}
	gen := NewFixedGenerator(tokens...)

	var mu sync.Mutex
	got := make(map[string]bool)
	var wg sync.WaitGroup
	for range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := gen.Generate()
			mu.Lock()
			got[tok] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, got, len(tokens))
}

func TestCycleFromContext(t *testing.T) {
	_, ok := CycleFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithCycle(context.Background(), Cycle{Token: "t", Seq: 4})
	c, ok := CycleFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, Cycle{Token: "t", Seq: 4}, c)
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
	assert.Equal(t, int64(42), resumed.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	seqs := make(chan int64, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s])
		seen[s] = true
	}
	assert.Len(t, seen, 1000)
}
