package storage

import (
	"context"
)

// Keys of the single logical token namespace.
const (
	KeyCSRFToken     = "csrf_token"
	KeyCSRFExpiresAt = "csrf_expires_at"
	KeySessionToken  = "session_token"
	KeySessionData   = "session_data"
)

// KV is the lowest client storage layer: a string key-value medium scoped to
// one device. It knows nothing about tokens or expiry; interpretation belongs
// to the csrf and session managers.
//
// Implementations must never panic when the medium is unavailable: Get
// reports absence, Set returns ErrUnavailable and Remove does nothing.
type KV interface {
	// Get returns the stored value and true, or "" and false if absent
	Get(ctx context.Context, key string) (string, bool)

	// Set writes the value and reads it back.
	// Returns ErrVerifyFailed if the read-back does not match what was written.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string)
}

// Unavailable is a KV for a medium that could not be opened.
// Every read is absent and every write fails with ErrUnavailable.
type Unavailable struct{}

var _ KV = Unavailable{}

// Get always reports absence
func (Unavailable) Get(context.Context, string) (string, bool) { return "", false }

// Set always fails with ErrUnavailable
func (Unavailable) Set(context.Context, string, string) error { return ErrUnavailable }

// Remove does nothing
func (Unavailable) Remove(context.Context, string) {}
