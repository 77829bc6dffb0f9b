package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketTokens = []byte("tokens")
)

// DefaultLockTimeout is how long New waits for another client process
// holding the file lock before giving up.
const DefaultLockTimeout = 2 * time.Second

// Storage represents BoltDB token storage for the client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	return NewWithTimeout(ctx, dbPath, DefaultLockTimeout)
}

// NewWithTimeout is New with an explicit file lock timeout
func NewWithTimeout(ctx context.Context, dbPath string, lockTimeout time.Duration) (*Storage, error) {
	// Открываем BoltDB; второй процесс клиента ждет снятия блокировки не дольше lockTimeout
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTokens); err != nil {
			return fmt.Errorf("failed to create tokens bucket: %w", err)
		}
		return nil
	})
}
