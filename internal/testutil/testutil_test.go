package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/grimoire/internal/directory"
	"github.com/roach88/grimoire/internal/rules"
)

// TestDeterministicClock_Reset verifies a reset clock replays the same seqs.
func TestDeterministicClock_Reset(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
}

// TestDeterministicClock_ThreadSafe verifies concurrent Next calls never collide.
func TestDeterministicClock_ThreadSafe(t *testing.T) {
	c := NewDeterministicClock()
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v := c.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
	assert.Equal(t, int64(1000), c.Current())
}

// TestSequentialIDs verifies numbering and reset.
func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("sub")
	assert.Equal(t, "sub-1", g.Generate())
	assert.Equal(t, "sub-2", g.Generate())
	g.Reset()
	assert.Equal(t, "sub-1", g.Generate())
}

// TestPutEntity verifies fixtures land in the directory.
func TestPutEntity(t *testing.T) {
	dir := directory.New()
	PutEntity(t, dir, "hero", `{"tags":["pc"]}`)
	PutEffect(t, dir, "bless", `{}`)

	hero, ok := dir.Get(rules.KindEntity, "hero")
	assert.True(t, ok)
	assert.Equal(t, []string{"pc"}, hero.Strings("tags"))
	_, ok = dir.Get(rules.KindEffect, "bless")
	assert.True(t, ok)
}
