// Package redis implements storage.Storage on Redis.
//
// OTPs and sessions are stored with a TTL derived from their ExpiresAt, so
// Redis evicts them on its own and DeleteExpired has nothing to do.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
)

// DefaultPrefix is prepended to every key
const DefaultPrefix = "authflow:"

// Storage is a Redis-based storage for users, pending OTPs and sessions
type Storage struct {
	client redis.UniversalClient
	now    func() time.Time
	prefix string
}

var _ storage.Storage = (*Storage)(nil)

// New creates a Redis storage with DefaultPrefix
func New(client redis.UniversalClient) *Storage {
	return NewWithPrefix(client, DefaultPrefix)
}

// NewWithPrefix creates a Redis storage with a custom key prefix
func NewWithPrefix(client redis.UniversalClient, prefix string) *Storage {
	return &Storage{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Connect opens a client for addr and checks it with PING.
// An empty prefix means DefaultPrefix.
func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	return NewWithPrefix(client, prefix), nil
}

// Close closes the Redis client
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) userKey(id string) string { return s.prefix + "user:" + id }
func (s *Storage) emailKey(email string) string { return s.prefix + "user-email:" + email }
func (s *Storage) otpKey(email string) string { return s.prefix + "otp:" + email }
func (s *Storage) sessionKey(id string) string { return s.prefix + "session:" + id }

// CreateUser creates a new user; the email index is claimed with SETNX
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !claimed {
		return storage.ErrUserAlreadyExists
	}

	if err := s.client.Set(ctx, s.userKey(user.ID), data, 0).Err(); err != nil {
		// Освобождаем email, иначе он останется занятым без пользователя
		_ = s.client.Del(ctx, s.emailKey(user.Email)).Err()
		return fmt.Errorf("redis set user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.getJSON(ctx, s.userKey(userID), &user); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// MarkVerified sets IsVerified and UpdatedAt
func (s *Storage) MarkVerified(ctx context.Context, userID string, at time.Time) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	user.IsVerified = true
	user.UpdatedAt = at

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	return s.client.Set(ctx, s.userKey(userID), data, 0).Err()
}

// SaveOTP stores the code with a TTL, replacing any pending code for the email.
// An already expired code only removes the pending one.
func (s *Storage) SaveOTP(ctx context.Context, otp *models.OTP) error {
	key := s.otpKey(otp.Email)

	ttl := otp.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, key).Err()
	}

	data, err := json.Marshal(otp)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

// GetOTP retrieves the pending code for email
func (s *Storage) GetOTP(ctx context.Context, email string) (*models.OTP, error) {
	var otp models.OTP
	if err := s.getJSON(ctx, s.otpKey(email), &otp); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrOTPNotFound
		}
		return nil, err
	}
	return &otp, nil
}

// deleteOTPScript удаляет код только если code_hash совпадает; скрипт выполняется атомарно
var deleteOTPScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
if cjson.decode(v)['code_hash'] ~= ARGV[1] then
	return 0
end
return redis.call('DEL', KEYS[1])
`)

// DeleteOTP removes the pending code if its hash matches; only one caller consumes it
func (s *Storage) DeleteOTP(ctx context.Context, email, codeHash string) error {
	n, err := deleteOTPScript.Run(ctx, s.client, []string{s.otpKey(email)}, codeHash).Int()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if n == 0 {
		return storage.ErrOTPNotFound
	}
	return nil
}

// CreateSession stores a new session with a TTL until ExpiresAt.
// An already expired session is not stored.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, s.sessionKey(session.ID), data, ttl).Err()
}

// GetSession retrieves session by ID
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, storage.ErrSessionNotFound
	}

	var session models.Session
	if err := s.getJSON(ctx, s.sessionKey(sessionID), &session); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, err
	}

	// TTL мог еще не сработать
	if session.Expired(s.now()) {
		_ = s.client.Del(ctx, s.sessionKey(sessionID)).Err()
		return nil, storage.ErrSessionNotFound
	}

	return &session, nil
}

// DeleteSession deletes session by ID
func (s *Storage) DeleteSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return storage.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys by TTL
func (s *Storage) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// getJSON reads key and decodes it; a missing key returns redis.Nil
func (s *Storage) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}
