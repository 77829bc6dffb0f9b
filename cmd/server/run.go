package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/authflow/internal/config"
	"github.com/iudanet/authflow/internal/crypto"
	"github.com/iudanet/authflow/internal/server"
	"github.com/iudanet/authflow/internal/server/auth"
	"github.com/iudanet/authflow/internal/server/handlers"
	"github.com/iudanet/authflow/internal/server/jwt"
	"github.com/iudanet/authflow/internal/server/storage"
	"github.com/iudanet/authflow/internal/server/storage/memory"
	"github.com/iudanet/authflow/internal/server/storage/redis"
	"github.com/iudanet/authflow/internal/server/storage/sqlite"
)

type serverFlags struct {
	addr       string
	storage    string
	sqlitePath string
	redisAddr  string
	dev        bool
}

func run(cmd *cobra.Command, flags serverFlags) error {
	ctx := cmd.Context()

	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Auth.SessionSecret == "" {
		// Только dev: токены не переживут перезапуск
		secret, err := crypto.GenerateToken()
		if err != nil {
			return err
		}
		cfg.Auth.SessionSecret = secret
		logger.WarnContext(ctx, "SESSION_SECRET not set, using a random secret")
	}

	store, pinger, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(store, jwt.NewService(cfg.Auth.SessionSecret), auth.Config{
		Sender:     auth.LogSender{Logger: logger},
		Logger:     logger,
		SessionTTL: cfg.Auth.SessionTTL,
		OTPTTL:     cfg.Auth.OTPTTL,
	})

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go authService.RunCleanup(cleanupCtx, cfg.Auth.CleanupInterval)

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: server.NewRouter(server.RouterConfig{
			Logger:  logger,
			Auth:    authService,
			Pinger:  pinger,
			Version: Version,
			Storage: cfg.Storage.Kind,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	done := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	logger.InfoContext(ctx, "server started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("storage", cfg.Storage.Kind),
		slog.String("version", Version))

	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.ServerConfig, flags serverFlags) {
	if cmd.Flags().Changed("addr") {
		cfg.HTTP.Addr = flags.addr
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Kind = flags.storage
	}
	if cmd.Flags().Changed("sqlite-path") {
		cfg.Storage.SQLitePath = flags.sqlitePath
	}
	if cmd.Flags().Changed("redis-addr") {
		cfg.Redis.Addr = flags.redisAddr
	}
	if cmd.Flags().Changed("dev") {
		cfg.IsDev = flags.dev
	}
	cfg.Sanitize()
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}
	if cfg.IsDev {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStorage открывает выбранный backend; pinger nil для memory
func openStorage(ctx context.Context, cfg config.ServerConfig) (storage.Storage, handlers.Pinger, error) {
	switch cfg.Storage.Kind {
	case config.StorageSQLite:
		s, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, s, nil
	case config.StorageRedis:
		s, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return memory.New(), nil, nil
	}
}
