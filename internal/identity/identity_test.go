package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goodmartian/beacon/internal/mesh"
)

func TestLoadOrCreatePersists(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)

	id, err := store.LoadOrCreate("alice")
	require.NoError(t, err)
	assert.NotEqual(t, mesh.DeviceID{}, id.DeviceID)
	assert.Equal(t, "alice", id.Name)
	assert.False(t, id.CreatedAt.IsZero())
	require.NoError(t, store.Close())

	// Reopen: same identity, same device ID.
	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	again, err := store.LoadOrCreate("")
	require.NoError(t, err)
	assert.Equal(t, id.DeviceID, again.DeviceID)
	assert.Equal(t, "alice", again.Name)
}

func TestLoadWithoutIdentity(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load()
	require.Error(t, err)
}

func TestRenameKeepsDeviceID(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.LoadOrCreate("alice")
	require.NoError(t, err)

	renamed, err := store.LoadOrCreate("bob")
	require.NoError(t, err)
	assert.Equal(t, id.DeviceID, renamed.DeviceID)
	assert.Equal(t, "bob", renamed.Name)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.Name)
}
