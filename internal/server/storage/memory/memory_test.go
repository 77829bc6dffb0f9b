package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
	"github.com/iudanet/authflow/internal/server/storage/storagetest"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStorage_DeleteExpiredCount(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := storagetest.Now()

	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "a", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "b", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.SaveOTP(ctx, &models.OTP{Email: "x@y.com", ExpiresAt: now}))

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := storagetest.NewUser("alice@example.com")
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	got.Email = "changed@example.com"

	again, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", again.Email)
}
