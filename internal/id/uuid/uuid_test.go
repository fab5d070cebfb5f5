package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(4), parsed.Version())
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	assert.False(t, Valid("doc-1"))
	assert.False(t, Valid(""))
}
