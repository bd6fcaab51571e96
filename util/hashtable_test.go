package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashTableSetGetDel(t *testing.T) {
	ht := NewHashTable[uint64, string](4)
	require.True(t, ht.Set(1, "one"))
	require.True(t, ht.Set(2, "two"))
	assert.False(t, ht.Set(1, "uno"))

	v, ok := ht.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	assert.Equal(t, 2, ht.Size())
	ht.Del(1)
	assert.Equal(t, 1, ht.Size())
	_, ok = ht.Get(1)
	assert.False(t, ok)
}

func TestHashTableDelUnknownPanics(t *testing.T) {
	ht := NewHashTable[uint64, int](4)
	assert.Panics(t, func() { ht.Del(99) })
}

func TestHashTableNonPositiveBucketsPanics(t *testing.T) {
	assert.Panics(t, func() { NewHashTable[int, int](0) })
}
