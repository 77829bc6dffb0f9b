package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/iudanet/authflow/internal/server/handlers"
	"github.com/iudanet/authflow/pkg/api"
)

// CSRF создает middleware, требующий X-CSRF-Token сессии для изменяющих запросов.
// Должен стоять после RequireSession/OptionalSession; запросы без сессии не проверяет.
func CSRF(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := handlers.SessionFromContext(r.Context())
			if !ok || !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(api.HeaderCSRFToken)
			if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(session.CSRFToken)) != 1 {
				logger.WarnContext(r.Context(), "CSRF token mismatch",
					slog.String("session_id", session.ID),
					slog.Bool("has_header", header != ""))
				handlers.SendError(logger, w, "invalid CSRF token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}
