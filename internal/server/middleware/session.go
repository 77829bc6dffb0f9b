package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/handlers"
)

// Authenticator resolves a bearer session token to a live session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// RequireSession создает middleware, пропускающий только запросы с действующей сессией
func RequireSession(logger *slog.Logger, authn Authenticator) func(http.Handler) http.Handler {
	return sessionMiddleware(logger, authn, true)
}

// OptionalSession кладет сессию в контекст, если токен действителен,
// и пропускает запрос дальше в любом случае
func OptionalSession(logger *slog.Logger, authn Authenticator) func(http.Handler) http.Handler {
	return sessionMiddleware(logger, authn, false)
}

func sessionMiddleware(logger *slog.Logger, authn Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := handlers.BearerToken(r)
			if token == "" {
				if required {
					logger.WarnContext(ctx, "missing session token")
					handlers.SendError(logger, w, "authentication required", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			session, err := authn.Authenticate(ctx, token)
			if err != nil {
				if required {
					logger.WarnContext(ctx, "invalid session token", slog.Any("error", err))
					handlers.SendError(logger, w, "invalid or expired session", http.StatusUnauthorized)
					return
				}
				logger.DebugContext(ctx, "ignoring invalid session token", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			logger.DebugContext(ctx, "session authenticated",
				slog.String("user_id", session.UserID),
				slog.String("session_id", session.ID))

			next.ServeHTTP(w, r.WithContext(handlers.WithSession(ctx, session, token)))
		})
	}
}
