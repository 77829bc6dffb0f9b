package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
	"github.com/iudanet/authflow/internal/server/storage/storagetest"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if REDIS_ADDR is not set or Redis is not reachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis tests")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}

	return client
}

// newTestStorage изолирует каждый тест уникальным префиксом ключей
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	client := setupTestRedis(t)
	prefix := fmt.Sprintf("authflow-test:%s:", uuid.New().String())

	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
		_ = client.Close()
	})

	return NewWithPrefix(client, prefix)
}

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return newTestStorage(t)
	})
}

func TestStorage_SessionTTL(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, s.CreateSession(ctx, session))

	ttl := s.client.TTL(ctx, s.sessionKey(session.ID)).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl = %v", ttl)
}

func TestStorage_ExpiredOTPRemovesPending(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOTP(ctx, &models.OTP{Email: "a@b.com", CodeHash: "h", ExpiresAt: time.Now().Add(time.Minute)}))
	require.NoError(t, s.SaveOTP(ctx, &models.OTP{Email: "a@b.com", CodeHash: "h2", ExpiresAt: time.Now().Add(-time.Second)}))

	_, err := s.GetOTP(ctx, "a@b.com")
	assert.ErrorIs(t, err, storage.ErrOTPNotFound)
}

func TestStorage_GetSessionChecksExpiry(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	session := &models.Session{ID: uuid.New().String(), UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateSession(ctx, session))

	// Часы ушли вперед раньше, чем сработал TTL
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestConnect(t *testing.T) {
	client := setupTestRedis(t)
	_ = client.Close()

	ctx := context.Background()
	s, err := Connect(ctx, os.Getenv("REDIS_ADDR"), "", 0, "")
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	assert.Equal(t, DefaultPrefix, s.prefix)
	assert.NoError(t, s.Ping(ctx))
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, "127.0.0.1:1", "", 0, "custom:")
	assert.Error(t, err)
}
