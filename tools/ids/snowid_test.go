package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratorIsStrictlyIncreasing(t *testing.T) {
	g := NewGenerator(7)
	prev := g.Next()
	for i := 0; i < 10000; i++ {
		next := g.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
	assert.EqualValues(t, 7, (prev>>12)&0x3FF)
}

func TestGeneratorNodeBounds(t *testing.T) {
	assert.EqualValues(t, 1, NewGenerator(5000).nodeID)
	assert.EqualValues(t, 1, NewGenerator(-1).nodeID)

	SetNodeID(3)
	assert.EqualValues(t, 3, (Generate()>>12)&0x3FF)
	SetNodeID(1)
	assert.NotEmpty(t, GenerateString())
}

func TestUUID(t *testing.T) {
	id := NewUUID()
	assert.True(t, IsUUID(id))
	assert.NotEqual(t, id, NewUUID())
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID("{"+id+"}"))
	assert.False(t, IsUUID(""))
}
