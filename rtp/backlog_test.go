package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBacklogInsertAndGet(t *testing.T) {
	b := NewBacklog(3)
	b.Insert(1, []byte("a"))
	b.Insert(2, []byte("b"))

	data, ok := b.Get(1)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), data)
	assert.True(t, b.Contains(2))
	assert.False(t, b.Contains(3))
	assert.Equal(t, 2, b.Len())
}

func TestBacklogEvictsOldestOnOverflow(t *testing.T) {
	b := NewBacklog(2)
	b.Insert(1, []byte("a"))
	b.Insert(2, []byte("b"))
	b.Insert(3, []byte("c"))

	assert.False(t, b.Contains(1))
	assert.True(t, b.Contains(2))
	assert.True(t, b.Contains(3))
	assert.Equal(t, 2, b.Len())
}

func TestBacklogCapacityNEviction(t *testing.T) {
	const capacity = 5
	b := NewBacklog(capacity)
	for i := uint16(0); i < 12; i++ {
		b.Insert(i, []byte{byte(i)})
	}
	assert.Equal(t, capacity, b.Len())
	for i := uint16(7); i < 12; i++ {
		assert.True(t, b.Contains(i), "seq %d should still be retained", i)
	}
	for i := uint16(0); i < 7; i++ {
		assert.False(t, b.Contains(i), "seq %d should have been evicted", i)
	}
}

func TestBacklogReinsertDoesNotAffectEvictionOrder(t *testing.T) {
	b := NewBacklog(2)
	b.Insert(1, []byte("a"))
	b.Insert(2, []byte("b"))
	b.Insert(1, []byte("a-updated"))
	b.Insert(3, []byte("c"))

	// 1 was re-inserted (not touched in insertion order), so 1 remains the
	// oldest and is evicted when 3 arrives.
	assert.False(t, b.Contains(1))
	assert.True(t, b.Contains(2))
	assert.True(t, b.Contains(3))
}

func TestBacklogClear(t *testing.T) {
	b := NewBacklog(2)
	b.Insert(1, []byte("a"))
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Contains(1))
}
