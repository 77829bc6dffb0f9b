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

// CreateSession stores a new session
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, email, csrf_token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Email,
		session.CSRFToken,
		session.ExpiresAt.UnixMilli(),
		session.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetSession retrieves session by ID
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, user_id, email, csrf_token, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`

	session := &models.Session{}
	var expiresAt int64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.Email,
		&session.CSRFToken,
		&expiresAt,
		&session.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.ExpiresAt = time.UnixMilli(expiresAt).UTC()

	return session, nil
}

// DeleteSession deletes session by ID
func (s *Storage) DeleteSession(ctx context.Context, sessionID string) error {
	query := `DELETE FROM sessions WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// DeleteExpired removes sessions and codes expired at now
func (s *Storage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int64
	for _, query := range []string{
		`DELETE FROM sessions WHERE expires_at <= ?`,
		`DELETE FROM otps WHERE expires_at <= ?`,
	} {
		result, err := tx.ExecContext(ctx, query, now.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("failed to delete expired records: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int(total), nil
}
