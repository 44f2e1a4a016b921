package lrucache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reldb/reldb/pkg/lrucache"
)

func TestCache_PutGet(t *testing.T) {
	t.Parallel()

	aCache := lrucache.New[string, int](3)
	aCache.Put("one", 1)
	aCache.Put("two", 2)

	value, ok := aCache.Get("one")
	require.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = aCache.Get("three")
	assert.False(t, ok)

	// Overwrite keeps a single entry
	aCache.Put("one", 11)
	value, ok = aCache.Get("one")
	require.True(t, ok)
	assert.Equal(t, 11, value)
	assert.Equal(t, 2, aCache.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	aCache := lrucache.New[int, string](2)
	aCache.Put(1, "one")
	aCache.Put(2, "two")

	// Touch 1 so 2 becomes the eviction candidate
	_, ok := aCache.Get(1)
	require.True(t, ok)

	aCache.Put(3, "three")

	_, ok = aCache.Get(2)
	assert.False(t, ok)
	_, ok = aCache.Get(1)
	assert.True(t, ok)
	_, ok = aCache.Get(3)
	assert.True(t, ok)
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()

	aCache := lrucache.New[int, int](2)
	aCache.Put(1, 1)
	aCache.Remove(1)
	aCache.Remove(42) // no-op

	_, ok := aCache.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, aCache.Len())
}
