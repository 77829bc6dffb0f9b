package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/storage"
)

// isUniqueViolation проверяет нарушение UNIQUE ограничения
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		// Проверяем на duplicate email
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, is_verified, created_at, updated_at
		FROM users
		WHERE email = ?
	`

	return s.getUser(ctx, query, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, email, is_verified, created_at, updated_at
		FROM users
		WHERE id = ?
	`

	return s.getUser(ctx, query, userID)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// MarkVerified sets IsVerified and UpdatedAt
func (s *Storage) MarkVerified(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET is_verified = 1, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}
