package storage

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put("chat:snapshot", []byte(`{"isOpen":true}`)))
	got, err := store.Get("chat:snapshot")
	require.NoError(t, err)
	assert.Equal(t, `{"isOpen":true}`, string(got))

	require.NoError(t, store.Put("chat:snapshot", []byte(`{}`)))
	got, err = store.Get("chat:snapshot")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))

	require.NoError(t, store.Delete("chat:snapshot"))
	_, err = store.Get("chat:snapshot")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete("never-written"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, store.Put("k", value))
	value[0] = 'z'

	got, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestPebbleStore(t *testing.T) {
	store, err := OpenPebble("chat-state", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestPebbleStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenPebble(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put("chat:session-marker", []byte("tab-1")))
	require.NoError(t, store.Close())

	reopened, err := OpenPebble(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get("chat:session-marker")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", string(got))
}
