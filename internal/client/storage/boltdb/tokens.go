package boltdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/iudanet/authflow/internal/client/storage"
)

var _ storage.KV = (*Storage)(nil)

var errBucketNotFound = errors.New("tokens bucket not found")

// Get retrieves a value from the tokens bucket
func (s *Storage) Get(ctx context.Context, key string) (string, bool) {
	if s == nil || s.db == nil {
		return "", false
	}

	var (
		value string
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return errBucketNotFound
		}

		// bbolt отдает срез, валидный только внутри транзакции, поэтому копируем
		if data := bucket.Get([]byte(key)); data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		slog.DebugContext(ctx, "token storage read failed", slog.String("key", key), slog.Any("error", err))
		return "", false
	}

	return value, found
}

// Set stores a value and verifies it with a separate read transaction
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return storage.ErrUnavailable
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return errBucketNotFound
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to put %q: %w", key, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
			return storage.ErrUnavailable
		}
		return fmt.Errorf("failed to save token data: %w", err)
	}

	// Read-back: другой процесс мог перезаписать ключ между транзакциями
	stored, ok := s.Get(ctx, key)
	if !ok || stored != value {
		return storage.ErrVerifyFailed
	}

	return nil
}

// Remove deletes a key; absent keys and closed databases are ignored
func (s *Storage) Remove(ctx context.Context, key string) {
	if s == nil || s.db == nil {
		return
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		if bucket == nil {
			return errBucketNotFound
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		slog.DebugContext(ctx, "token storage remove failed", slog.String("key", key), slog.Any("error", err))
	}
}
