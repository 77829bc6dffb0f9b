package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/authflow/internal/client/storage"
)

// создаём тестовое BoltDB хранилище
func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "tokens_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStorage_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, ok := store.Get(ctx, storage.KeyCSRFToken)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, storage.KeyCSRFToken, "abc"))

	got, ok := store.Get(ctx, storage.KeyCSRFToken)
	require.True(t, ok)
	assert.Equal(t, "abc", got)

	// Полная перезапись
	require.NoError(t, store.Set(ctx, storage.KeyCSRFToken, "def"))
	got, ok = store.Get(ctx, storage.KeyCSRFToken)
	require.True(t, ok)
	assert.Equal(t, "def", got)

	store.Remove(ctx, storage.KeyCSRFToken)
	_, ok = store.Get(ctx, storage.KeyCSRFToken)
	assert.False(t, ok)

	// Удаление отсутствующего ключа не ошибка
	store.Remove(ctx, storage.KeyCSRFToken)
}

func TestStorage_EmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Set(ctx, storage.KeySessionToken, ""))

	got, ok := store.Get(ctx, storage.KeySessionToken)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	first, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, storage.KeySessionData, `{"sessionToken":"s1"}`))
	require.NoError(t, first.Close())

	second, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	got, ok := second.Get(ctx, storage.KeySessionData)
	require.True(t, ok)
	assert.Equal(t, `{"sessionToken":"s1"}`, got)
}

func TestStorage_ClosedDegradesToUnavailable(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	require.NoError(t, store.Set(ctx, storage.KeyCSRFToken, "abc"))
	require.NoError(t, store.Close())

	_, ok := store.Get(ctx, storage.KeyCSRFToken)
	assert.False(t, ok)

	err := store.Set(ctx, storage.KeyCSRFToken, "new")
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	assert.NotPanics(t, func() {
		store.Remove(ctx, storage.KeyCSRFToken)
	})
}

func TestStorage_NilIsUnavailable(t *testing.T) {
	ctx := context.Background()
	var store *Storage

	_, ok := store.Get(ctx, storage.KeyCSRFToken)
	assert.False(t, ok)
	assert.ErrorIs(t, store.Set(ctx, storage.KeyCSRFToken, "x"), storage.ErrUnavailable)
	assert.NotPanics(t, func() { store.Remove(ctx, storage.KeyCSRFToken) })
}
