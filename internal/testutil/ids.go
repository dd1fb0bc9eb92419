package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator hands out UUID-shaped ids with a trailing counter.
//
// Ids sort in generation order, like the UUIDv7 keys used in production,
// so ordering by id in tests is predictable:
//
//	00000000-0000-7000-8000-000000000001
//	00000000-0000-7000-8000-000000000002
//
// Thread-safety: Generate is safe for concurrent use.
type SequenceIDGenerator struct {
	mu sync.Mutex
	n  int64
}

// NewSequenceIDGenerator returns a generator whose first id ends in 1.
func NewSequenceIDGenerator() *SequenceIDGenerator {
	return &SequenceIDGenerator{}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}
