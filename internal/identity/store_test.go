package identity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store TokenStore) {
	t.Helper()

	_, ok, err := store.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	expires := time.Unix(1700000000, 123)
	require.NoError(t, store.Save("u1", CachedToken{Token: "t1", ExpiresAt: expires}))

	tok, ok, err := store.Load("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", tok.Token)
	assert.True(t, expires.Equal(tok.ExpiresAt))

	require.NoError(t, store.Save("u1", CachedToken{Token: "t2", ExpiresAt: expires.Add(time.Hour)}))
	tok, _, err = store.Load("u1")
	require.NoError(t, err)
	assert.Equal(t, "t2", tok.Token)

	require.NoError(t, store.Delete("u1"))
	_, ok, err = store.Load("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)
}
