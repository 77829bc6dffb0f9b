package storage

import (
	"context"
	"time"

	"github.com/iudanet/authflow/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email already exists
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// MarkVerified sets IsVerified and UpdatedAt
	// Returns ErrUserNotFound if user doesn't exist
	MarkVerified(ctx context.Context, userID string, at time.Time) error
}

// OTPStorage defines interface for pending one-time codes.
// At most one code is stored per email.
type OTPStorage interface {
	// SaveOTP stores the code, replacing any pending code for the same email
	SaveOTP(ctx context.Context, otp *models.OTP) error

	// GetOTP retrieves the pending code for email
	// Returns ErrOTPNotFound if there is none
	GetOTP(ctx context.Context, email string) (*models.OTP, error)

	// DeleteOTP removes the pending code only if it is still the one with codeHash.
	// Returns ErrOTPNotFound if it was already removed or replaced by a newer
	// code, which makes a successful delete the single point where a code is consumed.
	DeleteOTP(ctx context.Context, email, codeHash string) error
}

// SessionStorage defines interface for server-side sessions
type SessionStorage interface {
	// CreateSession stores a new session
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// DeleteSession deletes session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions and codes expired at now
	// Returns number of deleted records
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Storage is the full repository used by the auth service
type Storage interface {
	UserStorage
	OTPStorage
	SessionStorage

	// Close releases the backend connection
	Close() error
}
