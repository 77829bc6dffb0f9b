// Package csrf manages the client-side CSRF token and its expiry.
//
// The manager keeps no state of its own: every call re-reads the token
// storage, so several processes sharing one storage file always observe the
// same token.
package csrf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/authflow/internal/client/storage"
	"github.com/iudanet/authflow/pkg/api"
)

// Manager issues, validates and clears the CSRF token + expiry pair
type Manager struct {
	store  storage.KV
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

// NewManager создает менеджер CSRF токена поверх хранилища
func NewManager(store storage.KV, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store writes the token and its expiry as one logical unit.
// If the second key cannot be written the first one is removed again.
func (m *Manager) Store(ctx context.Context, token string, expiresAt time.Time) error {
	if err := m.store.Set(ctx, storage.KeyCSRFToken, token); err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			m.logger.WarnContext(ctx, "cannot store CSRF token: storage not available")
		}
		m.store.Remove(ctx, storage.KeyCSRFToken)
		return fmt.Errorf("failed to store CSRF token: %w", err)
	}

	if err := m.store.Set(ctx, storage.KeyCSRFExpiresAt, api.FormatTime(expiresAt)); err != nil {
		m.Clear(ctx)
		return fmt.Errorf("failed to store CSRF expiry: %w", err)
	}

	return nil
}

// Read returns the current token. A token missing its pair, with an
// unparseable expiry or past its expiry is absent; the last two cases also
// clear both keys.
func (m *Manager) Read(ctx context.Context) (string, bool) {
	token, okToken := m.store.Get(ctx, storage.KeyCSRFToken)
	rawExpiry, okExpiry := m.store.Get(ctx, storage.KeyCSRFExpiresAt)
	if !okToken || !okExpiry || token == "" || rawExpiry == "" {
		return "", false
	}

	expiresAt, err := api.ParseTime(rawExpiry)
	if err != nil {
		m.logger.WarnContext(ctx, "discarding CSRF token with invalid expiry", slog.Any("error", err))
		m.Clear(ctx)
		return "", false
	}

	if !m.now().Before(expiresAt) {
		m.logger.DebugContext(ctx, "CSRF token expired", slog.Time("expires_at", expiresAt))
		m.Clear(ctx)
		return "", false
	}

	return token, true
}

// Clear removes both keys unconditionally
func (m *Manager) Clear(ctx context.Context) {
	m.store.Remove(ctx, storage.KeyCSRFToken)
	m.store.Remove(ctx, storage.KeyCSRFExpiresAt)
}

// IsValid reports whether a non-expired token is stored
func (m *Manager) IsValid(ctx context.Context) bool {
	_, ok := m.Read(ctx)
	return ok
}

// Headers returns the CSRF header for a state-changing method when a valid
// token exists, otherwise an empty map.
func (m *Manager) Headers(ctx context.Context, method string) map[string]string {
	headers := map[string]string{}
	if !IsMutating(method) {
		return headers
	}
	if token, ok := m.Read(ctx); ok {
		headers[api.HeaderCSRFToken] = token
	}
	return headers
}

// Ingest stores the CSRF token carried by a response, if it has both token and expiry.
// Every authenticated response passes through here, which is how the token rotates.
func (m *Manager) Ingest(ctx context.Context, resp *api.AuthResponse) error {
	if !resp.HasCSRF() {
		return nil
	}

	expiresAt, err := api.ParseTime(resp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to parse CSRF expiry: %w", err)
	}

	if err := m.Store(ctx, resp.CSRFToken, expiresAt); err != nil {
		return err
	}

	m.logger.DebugContext(ctx, "CSRF token stored", slog.Time("expires_at", expiresAt))
	return nil
}

// Info is a redacted snapshot of the CSRF state for diagnostics
type Info struct {
	Preview  string
	HasToken bool
	IsValid  bool
}

// Info reports whether a token exists and is valid, with a 10 character preview
func (m *Manager) Info(ctx context.Context) Info {
	_, hasRaw := m.store.Get(ctx, storage.KeyCSRFToken)
	token, ok := m.Read(ctx)
	info := Info{HasToken: hasRaw, IsValid: ok}
	if ok {
		info.Preview = Preview(token)
	}
	return info
}

// IsMutating reports whether requests with this method need CSRF protection
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Preview returns the first 10 characters of a token followed by "..."
func Preview(token string) string {
	const n = 10
	if len(token) <= n {
		return token + "..."
	}
	return token[:n] + "..."
}
