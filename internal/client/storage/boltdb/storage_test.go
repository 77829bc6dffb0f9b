package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestNew_Success(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "testdb.db")

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() {
		require.NoError(t, store.Close())
	}()

	// Проверяем что файл БД действительно создан
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакет существует
	err = store.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketTokens) == nil {
			return os.ErrNotExist
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	ctx := context.Background()
	// Каталог вместо файла: bbolt не сможет его открыть
	store, err := New(ctx, t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNew_LockedBySecondProcess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "locked.db")
	ctx := context.Background()

	first, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	// Второй открывающий должен отвалиться по таймауту, а не зависнуть
	start := time.Now()
	second, err := NewWithTimeout(ctx, dbPath, 100*time.Millisecond)
	assert.Error(t, err)
	assert.Nil(t, second)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)

	require.NoError(t, store.Close())

	// Повторное закрытие nil-хранилища безопасно
	var nilStore *Storage
	assert.NoError(t, nilStore.Close())
}
