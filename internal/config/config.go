// Package config loads server and client settings from the environment.
//
// Values come from environment variables via github.com/caarlos0/env; a
// .env file in the working directory is loaded first if present. Call
// Sanitize after parsing to clamp out-of-range values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// loadDotEnv загружает .env, отсутствие файла не ошибка
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}
	return nil
}

// parse заполняет cfg из окружения; environ подменяет окружение процесса в тестах
func parse(cfg any, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
