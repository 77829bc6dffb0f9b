// Package cli implements the authflow client commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/iudanet/authflow/internal/autherr"
	"github.com/iudanet/authflow/internal/client/api"
	"github.com/iudanet/authflow/internal/client/auth"
	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/iocli"
	"github.com/iudanet/authflow/internal/client/session"
	"github.com/iudanet/authflow/internal/client/storage"
	"github.com/iudanet/authflow/internal/client/storage/boltdb"
	"github.com/iudanet/authflow/internal/config"
)

// Cli выполняет команды клиента
type Cli struct {
	io     iocli.IO
	auth   *auth.Service
	api    *api.Client
	now    func() time.Time
	closer func() error
}

// New собирает Cli из готовых сервисов
func New(stdio iocli.IO, authService *auth.Service, apiClient *api.Client) *Cli {
	return &Cli{
		io:   stdio,
		auth: authService,
		api:  apiClient,
		now:  time.Now,
	}
}

// Open builds the whole client stack for cfg: token storage, CSRF and
// session managers, API client and auth service.
//
// If the token file cannot be opened the client keeps working without
// persistence: every login attempt will then fail with a storage error.
func Open(ctx context.Context, cfg config.ClientConfig, stdio iocli.IO, logger *slog.Logger) *Cli {
	var (
		kv     storage.KV = storage.Unavailable{}
		closer            = func() error { return nil }
	)

	bolt, err := openBolt(ctx, cfg.DBPath)
	if err != nil {
		logger.WarnContext(ctx, "token storage unavailable, continuing without it",
			slog.String("path", cfg.DBPath),
			slog.Any("error", err))
	} else {
		kv = bolt
		closer = bolt.Close
	}

	csrfManager := csrf.NewManager(kv, csrf.WithLogger(logger))
	sessionManager := session.NewManager(kv, csrfManager, session.WithLogger(logger))
	apiClient := api.NewClient(cfg.ServerURL, csrfManager, sessionManager,
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(logger))
	authService := auth.NewService(apiClient, csrfManager, sessionManager, auth.WithLogger(logger))

	c := New(stdio, authService, apiClient)
	c.closer = closer
	return c
}

func openBolt(ctx context.Context, path string) (*boltdb.Storage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	return boltdb.New(ctx, path)
}

// Close releases the token storage
func (c *Cli) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// ErrorMessage returns the user-facing text of err.
// verbose adds the underlying cause.
func ErrorMessage(err error, verbose bool) string {
	var authErr *autherr.Error
	if errors.As(err, &authErr) && !verbose {
		return authErr.Message
	}
	return err.Error()
}

// prompt возвращает value или спрашивает его у пользователя
func (c *Cli) prompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	input, err := c.io.ReadInput(label)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return input, nil
}

func (c *Cli) promptSecret(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	input, err := c.io.ReadPassword(label)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return input, nil
}
