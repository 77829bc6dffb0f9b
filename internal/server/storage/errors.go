package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrOTPNotFound indicates that no pending OTP exists for the email
	// (never issued, already consumed or evicted by TTL)
	ErrOTPNotFound = errors.New("otp not found")

	// ErrSessionNotFound indicates that session was not found
	ErrSessionNotFound = errors.New("session not found")
)
