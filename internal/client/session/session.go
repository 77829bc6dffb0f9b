// Package session manages the client-side session record: session token,
// session-scoped CSRF token, expiry and the verified user profile.
//
// Like the csrf package it holds nothing in memory. Each operation parses
// the record from storage again, so a logout or login performed by another
// process is visible on the very next call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/storage"
	"github.com/iudanet/authflow/pkg/api"
)

// ExpiringSoonWindow is the horizon used by IsExpiringSoon
const ExpiringSoonWindow = 5 * time.Minute

// Record is the persisted session, stored as JSON under storage.KeySessionData
type Record struct {
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *api.User `json:"user,omitempty"`
	SessionToken string    `json:"sessionToken"`
	CSRFToken    string    `json:"csrfToken"`
}

// HasIdentity reports whether a verified user is attached to the record
func (r *Record) HasIdentity() bool {
	return r != nil && r.User != nil && r.User.ID != ""
}

// Manager issues, validates and clears the session record
type Manager struct {
	store  storage.KV
	csrf   *csrf.Manager
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager создает менеджер сессии.
// csrfManager очищается вместе с сессией: CSRF токен принадлежит сессии.
func NewManager(store storage.KV, csrfManager *csrf.Manager, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		csrf:   csrfManager,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store persists the full record in one write, duplicates the session token
// under storage.KeySessionToken and verifies the result by reading it back.
//
// A nil error means the user is logged in locally. On any failure the keys
// written by this call are removed and the caller must treat the user as
// not authenticated, even if the server accepted the login.
func (m *Manager) Store(ctx context.Context, sessionToken, csrfToken string, expiresAt time.Time, user *api.User) error {
	rec := Record{
		SessionToken: sessionToken,
		CSRFToken:    csrfToken,
		ExpiresAt:    expiresAt.UTC(),
		User:         user,
	}

	m.logger.DebugContext(ctx, "storing session data",
		slog.Bool("has_session_token", sessionToken != ""),
		slog.Bool("has_csrf_token", csrfToken != ""),
		slog.Time("expires_at", expiresAt),
		slog.Bool("has_user", user != nil))

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := m.store.Set(ctx, storage.KeySessionData, string(data)); err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			m.logger.WarnContext(ctx, "cannot store session data: storage not available")
		}
		m.removeSessionKeys(ctx)
		return fmt.Errorf("failed to store session data: %w", err)
	}

	if err := m.store.Set(ctx, storage.KeySessionToken, sessionToken); err != nil {
		m.removeSessionKeys(ctx)
		return fmt.Errorf("failed to store session token: %w", err)
	}

	if err := m.verify(ctx, sessionToken); err != nil {
		m.logger.ErrorContext(ctx, "session data storage verification failed", slog.Any("error", err))
		m.removeSessionKeys(ctx)
		return err
	}

	m.logger.DebugContext(ctx, "session data stored and verified", slog.String("user_id", user.ID))
	return nil
}

// verify re-reads both keys and checks what a later Read/IsValid will rely on
func (m *Manager) verify(ctx context.Context, sessionToken string) error {
	raw, ok := m.store.Get(ctx, storage.KeySessionData)
	if !ok {
		return fmt.Errorf("session data missing after write: %w", storage.ErrVerifyFailed)
	}
	storedToken, ok := m.store.Get(ctx, storage.KeySessionToken)
	if !ok || storedToken != sessionToken {
		return fmt.Errorf("session token key mismatch: %w", storage.ErrVerifyFailed)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("session data unreadable after write: %w", storage.ErrVerifyFailed)
	}

	switch {
	case rec.SessionToken != sessionToken:
		return fmt.Errorf("stored session token mismatch: %w", storage.ErrVerifyFailed)
	case !rec.HasIdentity():
		return fmt.Errorf("stored session has no user id: %w", storage.ErrVerifyFailed)
	case rec.ExpiresAt.IsZero():
		return fmt.Errorf("stored session has no expiry: %w", storage.ErrVerifyFailed)
	}

	return nil
}

// Read returns the stored record. Malformed data is absent; an expired
// record is cleared (together with the CSRF keys) and absent.
func (m *Manager) Read(ctx context.Context) (*Record, bool) {
	raw, ok := m.store.Get(ctx, storage.KeySessionData)
	if !ok || raw == "" {
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.logger.WarnContext(ctx, "failed to parse session data", slog.Any("error", err))
		return nil, false
	}

	if rec.SessionToken == "" || rec.ExpiresAt.IsZero() {
		return nil, false
	}

	if !m.now().Before(rec.ExpiresAt) {
		m.logger.DebugContext(ctx, "session expired", slog.Time("expires_at", rec.ExpiresAt))
		m.Clear(ctx)
		return nil, false
	}

	return &rec, true
}

// IsValid reports whether an unexpired session with a verified user exists.
// A token without an identity is not an authenticated session.
func (m *Manager) IsValid(ctx context.Context) bool {
	rec, ok := m.Read(ctx)
	return ok && rec.HasIdentity()
}

// IsExpiringSoon reports whether the session expires within ExpiringSoonWindow.
// Informational only: there is no refresh flow, re-authentication is the only recovery.
func (m *Manager) IsExpiringSoon(ctx context.Context) bool {
	rec, ok := m.Read(ctx)
	if !ok {
		return false
	}
	return !rec.ExpiresAt.After(m.now().Add(ExpiringSoonWindow))
}

// User returns the user attached to the current session, or nil
func (m *Manager) User(ctx context.Context) *api.User {
	rec, ok := m.Read(ctx)
	if !ok {
		return nil
	}
	return rec.User
}

// Headers returns bearer and CSRF headers for a valid session, otherwise an empty map
func (m *Manager) Headers(ctx context.Context) map[string]string {
	headers := map[string]string{}

	rec, ok := m.Read(ctx)
	if !ok || !rec.HasIdentity() {
		return headers
	}

	headers[api.HeaderAuthorization] = api.BearerPrefix + rec.SessionToken
	if rec.CSRFToken != "" {
		headers[api.HeaderCSRFToken] = rec.CSRFToken
	}
	return headers
}

// Ingest persists the session carried by a response, if it has the full
// session_token + csrf_token + expires_at triple
func (m *Manager) Ingest(ctx context.Context, resp *api.AuthResponse) error {
	if !resp.HasSession() {
		return nil
	}

	expiresAt, err := api.ParseTime(resp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to parse session expiry: %w", err)
	}

	return m.Store(ctx, resp.SessionToken, resp.CSRFToken, expiresAt, resp.User)
}

// Clear removes the session keys and the CSRF keys
func (m *Manager) Clear(ctx context.Context) {
	m.removeSessionKeys(ctx)
	if m.csrf != nil {
		m.csrf.Clear(ctx)
	} else {
		m.store.Remove(ctx, storage.KeyCSRFToken)
		m.store.Remove(ctx, storage.KeyCSRFExpiresAt)
	}
	m.logger.DebugContext(ctx, "session data cleared")
}

func (m *Manager) removeSessionKeys(ctx context.Context) {
	m.store.Remove(ctx, storage.KeySessionData)
	m.store.Remove(ctx, storage.KeySessionToken)
}

// Info is a snapshot of the session state for status output
type Info struct {
	ExpiresAt    time.Time
	User         *api.User
	HasSession   bool
	IsValid      bool
	ExpiringSoon bool
}

// Info describes the current session
func (m *Manager) Info(ctx context.Context) Info {
	rec, ok := m.Read(ctx)
	if !ok {
		return Info{}
	}
	return Info{
		HasSession:   true,
		IsValid:      rec.HasIdentity(),
		ExpiresAt:    rec.ExpiresAt,
		User:         rec.User,
		ExpiringSoon: !rec.ExpiresAt.After(m.now().Add(ExpiringSoonWindow)),
	}
}
