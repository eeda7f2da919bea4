package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocIsZeroFilled(t *testing.T) {
	a := New(64)
	b := a.Alloc(16)
	assert.Len(t, b, 16)
	for _, v := range b {
		assert.Equal(t, byte(0), v)
	}
}

func TestAllocFromSameChunkDoesNotOverlap(t *testing.T) {
	a := New(64)
	first := a.Alloc(8)
	second := a.Alloc(8)
	for i := range first {
		first[i] = 0xAA
	}
	for i := range second {
		second[i] = 0xBB
	}
	for _, v := range first {
		assert.Equal(t, byte(0xAA), v)
	}
}

func TestAllocSpillsToNewChunk(t *testing.T) {
	a := New(8)
	first := a.Alloc(8)
	first[0] = 1
	second := a.Alloc(8) // doesn't fit in remaining space of the 8-byte chunk
	second[0] = 2
	assert.Equal(t, byte(1), first[0])
	assert.Equal(t, byte(2), second[0])
}

func TestGrowInPlaceWhenMostRecent(t *testing.T) {
	a := New(64)
	b := a.Alloc(4)
	copy(b, []byte{1, 2, 3, 4})

	grown := a.Grow(b, 8)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, grown)
}

func TestGrowFallsBackWhenNotMostRecent(t *testing.T) {
	a := New(64)
	first := a.Alloc(4)
	copy(first, []byte{1, 2, 3, 4})
	_ = a.Alloc(4) // now first is no longer the tail allocation

	grown := a.Grow(first, 8)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, grown)
}

func TestShrinkThenReallocReusesSpace(t *testing.T) {
	a := New(64)
	b := a.Alloc(8)
	copy(b, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	shrunk := a.Shrink(b, 4)
	assert.Equal(t, []byte{1, 2, 3, 4}, shrunk)

	next := a.Alloc(4)
	// the reclaimed 4 bytes should be handed out again, zero-filled
	assert.Equal(t, []byte{0, 0, 0, 0}, next)
}

func TestDestroyReleasesEverything(t *testing.T) {
	a := New(8)
	a.Alloc(8)
	a.Alloc(8)
	a.Destroy()
	assert.Nil(t, a.head)
}
