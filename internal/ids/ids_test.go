package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewShortID(t *testing.T) {
	for i := 0; i < 200; i++ {
		id, err := NewShortID()
		require.NoError(t, err)
		assert.Len(t, id, ShortIDLength)
		assert.True(t, IsShortID(id), id)
	}
}

func TestIsShortID(t *testing.T) {
	assert.True(t, IsShortID("ab12cd34"))
	assert.False(t, IsShortID("AB12CD34"))
	assert.False(t, IsShortID("ab12cd3"))
	assert.False(t, IsShortID("ab12cd345"))
	assert.False(t, IsShortID("ab12-d34"))
}
