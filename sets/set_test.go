package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetDeduplicates(t *testing.T) {
	s := NewSet(443, 80, 443)
	assert.Equal(t, 2, s.Size())
}

func TestContains(t *testing.T) {
	s := NewSet[uint16](443, 80)
	assert.True(t, s.Contains(443))
	assert.True(t, s.Contains(80))
	assert.False(t, s.Contains(8080))
}

func TestInsert(t *testing.T) {
	s := NewSet[string]()
	assert.False(t, s.Contains("a"))
	s.Insert("a", "b")
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.Equal(t, 2, s.Size())
}
