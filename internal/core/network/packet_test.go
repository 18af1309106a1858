package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionID(t *testing.T) {
	id := NewConnectionID()
	assert.NotEqual(t, NilConnectionID, id)

	parsed, err := ParseConnectionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseConnectionID("not-a-connection")
	assert.Error(t, err)
	assert.Equal(t, NilConnectionID, parsed)
}

func TestNewConnectionIDIsUnique(t *testing.T) {
	seen := make(map[ConnectionID]struct{})
	for i := 0; i < 100; i++ {
		id := NewConnectionID()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
