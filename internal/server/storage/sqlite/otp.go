package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
)

// SaveOTP stores the code, replacing any pending code for the same email
func (s *Storage) SaveOTP(ctx context.Context, otp *models.OTP) error {
	query := `
		INSERT OR REPLACE INTO otps (email, code_hash, csrf_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		otp.Email,
		otp.CodeHash,
		otp.CSRFToken,
		otp.ExpiresAt.UnixMilli(),
		otp.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}

	return nil
}

// GetOTP retrieves the pending code for email
func (s *Storage) GetOTP(ctx context.Context, email string) (*models.OTP, error) {
	query := `
		SELECT email, code_hash, csrf_token, expires_at, created_at
		FROM otps
		WHERE email = ?
	`

	otp := &models.OTP{}
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&otp.Email,
		&otp.CodeHash,
		&otp.CSRFToken,
		&expiresAt,
		&otp.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}

	otp.ExpiresAt = time.UnixMilli(expiresAt).UTC()

	return otp, nil
}

// DeleteOTP removes the pending code if its hash matches
func (s *Storage) DeleteOTP(ctx context.Context, email, codeHash string) error {
	query := `DELETE FROM otps WHERE email = ? AND code_hash = ?`

	result, err := s.db.ExecContext(ctx, query, email, codeHash)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrOTPNotFound
	}

	return nil
}
