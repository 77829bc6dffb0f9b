// Package storagetest holds behaviour tests shared by every storage.Storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
)

// Factory returns an empty storage; cleanup is registered by the factory via t.Cleanup
type Factory func(t *testing.T) storage.Storage

// Run executes the full suite against the backend produced by newStorage
func Run(t *testing.T, newStorage Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStorage(t)) })
	t.Run("otps", func(t *testing.T) { testOTPs(t, newStorage(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStorage(t)) })
	t.Run("delete expired", func(t *testing.T) { testDeleteExpired(t, newStorage(t)) })
}

// Now returns the current time at the precision every backend keeps
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewUser returns a user with a fresh ID
func NewUser(email string) *models.User {
	now := Now()
	return &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	user := NewUser("alice@example.com")

	require.NoError(t, s.CreateUser(ctx, user))

	// Повторная регистрация того же email
	dup := NewUser("alice@example.com")
	assert.ErrorIs(t, s.CreateUser(ctx, dup), storage.ErrUserAlreadyExists)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
	assert.False(t, got.IsVerified)
	assert.WithinDuration(t, user.CreatedAt, got.CreatedAt, time.Millisecond)

	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = s.GetUserByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	_, err = s.GetUserByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	verifiedAt := Now().Add(time.Minute)
	require.NoError(t, s.MarkVerified(ctx, user.ID, verifiedAt))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.WithinDuration(t, verifiedAt, got.UpdatedAt, time.Millisecond)

	assert.ErrorIs(t, s.MarkVerified(ctx, uuid.New().String(), verifiedAt), storage.ErrUserNotFound)
}

func testOTPs(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	now := Now()

	_, err := s.GetOTP(ctx, "alice@example.com")
	assert.ErrorIs(t, err, storage.ErrOTPNotFound)

	first := &models.OTP{
		Email:     "alice@example.com",
		CodeHash:  "hash-1",
		CSRFToken: "csrf-1",
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}
	require.NoError(t, s.SaveOTP(ctx, first))

	got, err := s.GetOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.CodeHash)
	assert.Equal(t, "csrf-1", got.CSRFToken)
	assert.WithinDuration(t, first.ExpiresAt, got.ExpiresAt, time.Millisecond)

	// Новый код заменяет ожидающий
	second := *first
	second.CodeHash = "hash-2"
	second.CSRFToken = "csrf-2"
	require.NoError(t, s.SaveOTP(ctx, &second))

	got, err = s.GetOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.CodeHash)
	assert.Equal(t, "csrf-2", got.CSRFToken)

	// Замененный код удалить нельзя
	assert.ErrorIs(t, s.DeleteOTP(ctx, "alice@example.com", "hash-1"), storage.ErrOTPNotFound)
	got, err = s.GetOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.CodeHash)

	// Удаление срабатывает ровно один раз
	require.NoError(t, s.DeleteOTP(ctx, "alice@example.com", "hash-2"))
	assert.ErrorIs(t, s.DeleteOTP(ctx, "alice@example.com", "hash-2"), storage.ErrOTPNotFound)
	_, err = s.GetOTP(ctx, "alice@example.com")
	assert.ErrorIs(t, err, storage.ErrOTPNotFound)
}

func testSessions(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	now := Now()

	user := NewUser("alice@example.com")
	require.NoError(t, s.CreateUser(ctx, user))

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		CSRFToken: "csrf-session",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, s.CreateSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, got.UserID)
	assert.Equal(t, session.Email, got.Email)
	assert.Equal(t, "csrf-session", got.CSRFToken)
	assert.WithinDuration(t, session.ExpiresAt, got.ExpiresAt, time.Millisecond)

	_, err = s.GetSession(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	require.NoError(t, s.DeleteSession(ctx, session.ID))
	assert.ErrorIs(t, s.DeleteSession(ctx, session.ID), storage.ErrSessionNotFound)
	_, err = s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func testDeleteExpired(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	now := Now()

	user := NewUser("alice@example.com")
	require.NoError(t, s.CreateUser(ctx, user))

	live := &models.Session{ID: uuid.New().String(), UserID: user.ID, Email: user.Email, CSRFToken: "c1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	expired := &models.Session{ID: uuid.New().String(), UserID: user.ID, Email: user.Email, CSRFToken: "c2", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, s.CreateSession(ctx, live))
	require.NoError(t, s.CreateSession(ctx, expired))

	expiredOTP := &models.OTP{Email: "bob@example.com", CodeHash: "h", CSRFToken: "c", ExpiresAt: now.Add(-time.Second), CreatedAt: now.Add(-time.Minute)}
	require.NoError(t, s.SaveOTP(ctx, expiredOTP))

	_, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)

	_, err = s.GetSession(ctx, live.ID)
	assert.NoError(t, err)
	_, err = s.GetSession(ctx, expired.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
	_, err = s.GetOTP(ctx, "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrOTPNotFound)
}
