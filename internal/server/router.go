// Package server wires the HTTP surface of the auth server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iudanet/authflow/internal/server/auth"
	"github.com/iudanet/authflow/internal/server/handlers"
	"github.com/iudanet/authflow/internal/server/middleware"
	"github.com/iudanet/authflow/pkg/api"
)

// RouterConfig собирает зависимости роутера
type RouterConfig struct {
	Logger  *slog.Logger
	Auth    *auth.Service
	Pinger  handlers.Pinger
	Version string
	Storage string
}

// NewRouter creates the chi router with all endpoints mounted
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := handlers.NewAuthHandler(cfg.Logger, cfg.Auth)
	healthHandler := handlers.NewHealthHandler(cfg.Logger, cfg.Version, cfg.Storage, cfg.Pinger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingWithSkip(cfg.Logger, []string{api.PathHealth}))
	r.Use(middleware.RecoveryMiddleware(cfg.Logger))

	r.Get(api.PathHealth, healthHandler.Health)

	r.Post(api.PathRegister, authHandler.Register)
	r.Post(api.PathLogin, authHandler.Login)
	r.Post(api.PathVerifyOTP, authHandler.VerifyOTP)

	// Logout принимает и истекшие сессии, поэтому сессия необязательна
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSession(cfg.Logger, cfg.Auth))
		r.Use(middleware.CSRF(cfg.Logger))
		r.Post(api.PathLogout, authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(cfg.Logger, cfg.Auth))
		r.Use(middleware.CSRF(cfg.Logger))
		r.Get(api.PathMe, authHandler.Me)
	})

	return r
}
