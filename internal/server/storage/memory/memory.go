// Package memory implements storage.Storage in process memory.
// Data is lost on restart; intended for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
)

// Storage represents in-memory storage implementation
type Storage struct {
	users    map[string]*models.User // по ID
	emails   map[string]string       // email -> ID
	otps     map[string]*models.OTP  // по email
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

var _ storage.Storage = (*Storage)(nil)

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{
		users:    make(map[string]*models.User),
		emails:   make(map[string]string),
		otps:     make(map[string]*models.OTP),
		sessions: make(map[string]*models.Session),
	}
}

// Close does nothing
func (s *Storage) Close() error {
	return nil
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[user.Email]; exists {
		return storage.ErrUserAlreadyExists
	}

	u := *user
	s.users[u.ID] = &u
	s.emails[u.Email] = u.ID
	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// MarkVerified sets IsVerified and UpdatedAt
func (s *Storage) MarkVerified(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.IsVerified = true
	user.UpdatedAt = at
	return nil
}

// SaveOTP stores the code, replacing any pending code for the same email
func (s *Storage) SaveOTP(_ context.Context, otp *models.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := *otp
	s.otps[o.Email] = &o
	return nil
}

// GetOTP retrieves the pending code for email
func (s *Storage) GetOTP(_ context.Context, email string) (*models.OTP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	otp, ok := s.otps[email]
	if !ok {
		return nil, storage.ErrOTPNotFound
	}
	o := *otp
	return &o, nil
}

// DeleteOTP removes the pending code if its hash matches
func (s *Storage) DeleteOTP(_ context.Context, email, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	otp, ok := s.otps[email]
	if !ok || otp.CodeHash != codeHash {
		return storage.ErrOTPNotFound
	}
	delete(s.otps, email)
	return nil
}

// CreateSession stores a new session
func (s *Storage) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := *session
	s.sessions[sess.ID] = &sess
	return nil
}

// GetSession retrieves session by ID
func (s *Storage) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	sess := *session
	return &sess, nil
}

// DeleteSession deletes session by ID
func (s *Storage) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return storage.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// DeleteExpired removes sessions and codes expired at now
func (s *Storage) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	for email, otp := range s.otps {
		if otp.Expired(now) {
			delete(s.otps, email)
			deleted++
		}
	}
	return deleted, nil
}
