package testutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDGenerator_Sequential(t *testing.T) {
	gen := NewSequenceIDGenerator()

	assert.Equal(t, "00000000-0000-7000-8000-000000000001", gen.Generate())
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", gen.Generate())
}

func TestSequenceIDGenerator_SortsInGenerationOrder(t *testing.T) {
	gen := NewSequenceIDGenerator()

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = gen.Generate()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestSequenceIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceIDGenerator()

	done := make(chan []string)
	for i := 0; i < 10; i++ {
		go func() {
			out := make([]string, 0, 100)
			for j := 0; j < 100; j++ {
				out = append(out, gen.Generate())
			}
			done <- out
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		for _, id := range <-done {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 1000)
}
