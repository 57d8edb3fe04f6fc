package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDs returns the same run ID every time.
//
// Implements runner.IDGenerator. Stateless and safe for concurrent use.
type FixedRunIDs struct {
	id string
}

// NewFixedRunIDs creates a fixed generator. If id is empty, Generate()
// returns "test-run-default".
func NewFixedRunIDs(id string) *FixedRunIDs {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDs{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDs) Generate() string {
	return g.id
}

// SequentialRunIDs returns prefix-1, prefix-2 and so on, for tests that
// store several runs.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a sequential generator.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
