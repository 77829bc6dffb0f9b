package handlers

import (
	"context"

	"github.com/iudanet/authflow/internal/models"
)

// ContextKey тип для ключей контекста
type ContextKey string

const (
	// SessionKey ключ для сессии в контексте
	SessionKey ContextKey = "session"
	// SessionTokenKey ключ для исходного session token в контексте
	SessionTokenKey ContextKey = "session_token"
)

// WithSession кладет сессию и её токен в контекст
func WithSession(ctx context.Context, session *models.Session, token string) context.Context {
	ctx = context.WithValue(ctx, SessionKey, session)
	return context.WithValue(ctx, SessionTokenKey, token)
}

// SessionFromContext returns the session placed by the session middleware
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*models.Session)
	return session, ok && session != nil
}

// SessionTokenFromContext returns the raw bearer token of the current session
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(SessionTokenKey).(string)
	return token
}
