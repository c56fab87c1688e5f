package testutil

// FixedRunIDGenerator generates the same run ID every time.
//
// This enables deterministic CLI tests: the run log, the summary and the
// error report all carry a known ID.
//
// Unlike store.FixedGenerator which returns IDs in sequence, this generator
// always returns the same ID.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run ID generator.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements store.RunIDGenerator interface.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
