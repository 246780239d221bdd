package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *usageStore {
	t.Helper()

	store, err := openUsageStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestPromptUsageRoundTrip(t *testing.T) {
	store := testStore(t)

	used, err := store.usedPrompts("room-a", "cat")
	require.NoError(t, err)
	assert.Empty(t, used)

	require.NoError(t, store.markPrompts("room-a", "cat", []string{"p1", "p2"}))

	used, err = store.usedPrompts("room-a", "cat")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p1": true, "p2": true}, used)

	// Marking again is a no-op, not an error.
	require.NoError(t, store.markPrompts("room-a", "cat", []string{"p1", "p3"}))

	used, err = store.usedPrompts("room-a", "cat")
	require.NoError(t, err)
	assert.Len(t, used, 3)
}

func TestPromptUsageScopedByRoomAndCategory(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.markPrompts("room-a", "cat", []string{"p1"}))

	used, err := store.usedPrompts("room-b", "cat")
	require.NoError(t, err)
	assert.Empty(t, used)

	used, err = store.usedPrompts("room-a", "other")
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestResetPromptsClearsOnlyOneCategory(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.markPrompts("room-a", "cat", []string{"p1"}))
	require.NoError(t, store.markPrompts("room-a", "other", []string{"p2"}))

	require.NoError(t, store.resetPrompts("room-a", "cat"))

	used, err := store.usedPrompts("room-a", "cat")
	require.NoError(t, err)
	assert.Empty(t, used)

	used, err = store.usedPrompts("room-a", "other")
	require.NoError(t, err)
	assert.Len(t, used, 1)
}

func TestImageUsageRoundTrip(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.markImages("room-a", []string{"a.jpg", "b.jpg"}))

	used, err := store.usedImages("room-a")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a.jpg": true, "b.jpg": true}, used)

	require.NoError(t, store.resetImages("room-a"))

	used, err = store.usedImages("room-a")
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestMarkNothingIsNoOp(t *testing.T) {
	store := testStore(t)

	assert.NoError(t, store.markPrompts("room-a", "cat", nil))
	assert.NoError(t, store.markImages("room-a", nil))
}
