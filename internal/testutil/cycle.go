package testutil

// FixedCycleGenerator returns the same cycle token every time.
//
// Scenario traces stay byte-identical between runs. Use
// watch.NewFixedGenerator instead when a test needs distinct tokens per
// cycle.
type FixedCycleGenerator struct {
	token string
}

// NewFixedCycleGenerator creates a generator for token.
// If token is empty, Generate returns "test-cycle-default".
func NewFixedCycleGenerator(token string) *FixedCycleGenerator {
	if token == "" {
		token = "test-cycle-default"
	}
	return &FixedCycleGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedCycleGenerator) Generate() string {
	return g.token
}
