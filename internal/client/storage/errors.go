package storage

import "errors"

// Common client storage errors
var (
	// ErrUnavailable indicates that the storage medium cannot be used
	// (not opened, closed, or failed to initialize)
	ErrUnavailable = errors.New("token storage is not available")

	// ErrVerifyFailed indicates that a value read back right after a write
	// differs from what was written (concurrent writer or broken medium)
	ErrVerifyFailed = errors.New("token storage write verification failed")
)
