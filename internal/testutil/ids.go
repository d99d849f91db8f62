package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator hands out predetermined ids in order, then falls back
// to "<prefix>-<n>" once they run out. It satisfies store.IDGenerator.
type FixedIDGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator returning ids first.
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids, prefix: "test-id"}
}

// SequentialIDs creates a generator producing "<prefix>-1", "<prefix>-2", ...
func SequentialIDs(prefix string) *FixedIDGenerator {
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
