package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionFindTransitivity(t *testing.T) {
	uf := newUnionFind(5)
	assert.True(t, uf.union(0, 1))
	assert.True(t, uf.union(1, 2))
	assert.False(t, uf.union(0, 2)) // already connected

	assert.Equal(t, uf.find(0), uf.find(2))
	assert.NotEqual(t, uf.find(0), uf.find(3))
}

func TestUnionFindSetsOrdering(t *testing.T) {
	uf := newUnionFind(6)
	uf.union(4, 2)
	uf.union(0, 5)

	sets := uf.sets()
	assert.Len(t, sets, 4)
	// Clusters are ordered by their smallest member.
	assert.Equal(t, []int{0, 5}, sets[0])
	assert.Equal(t, []int{1}, sets[1])
	assert.Equal(t, []int{2, 4}, sets[2])
	assert.Equal(t, []int{3}, sets[3])
}
