package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/auth"
	"github.com/iudanet/authflow/internal/server/storage"
	"github.com/iudanet/authflow/pkg/api"
)

// Response messages
const (
	MsgRegistered    = "Registration successful. Check your email for the verification code."
	MsgOTPSent       = "Verification code sent. Check your email."
	MsgAuthenticated = "Login successful"
	MsgLoggedOut     = "Logged out"
)

// AuthService is the server auth flow used by the handlers
type AuthService interface {
	CreateUser(ctx context.Context, email string) (*models.User, error)
	LoginUser(ctx context.Context, email string) (*auth.Challenge, error)
	VerifyOTP(ctx context.Context, email, code, csrfToken string) (*auth.Grant, error)
	GetUser(ctx context.Context, sessionID string) (*models.User, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutToken(ctx context.Context, token string) error
}

var _ AuthService = (*auth.Service)(nil)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service AuthService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service AuthService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
	}
}

// Register обрабатывает POST /register.
// Создает пользователя и сразу выдает OTP с pre-session CSRF токеном.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.CreateUser(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			h.sendError(w, "invalid email", http.StatusBadRequest)
		case errors.Is(err, storage.ErrUserAlreadyExists):
			h.logger.WarnContext(ctx, "user already exists")
			h.sendError(w, "email already registered", http.StatusConflict)
		default:
			h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	challenge, err := h.service.LoginUser(ctx, user.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue OTP after registration", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, challengeResponse(challenge, MsgRegistered), http.StatusCreated)
}

// Login обрабатывает POST /login.
// Каждый вызов выдает новый OTP, предыдущий перестает действовать.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	challenge, err := h.service.LoginUser(ctx, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			h.sendError(w, "invalid email", http.StatusBadRequest)
		case errors.Is(err, storage.ErrUserNotFound):
			h.logger.WarnContext(ctx, "login failed: user not found")
			h.sendError(w, "user not found", http.StatusNotFound)
		default:
			h.logger.ErrorContext(ctx, "failed to issue OTP", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, challengeResponse(challenge, MsgOTPSent), http.StatusOK)
}

// VerifyOTP обрабатывает POST /verify-otp.
// X-CSRF-Token должен совпадать с токеном, выданным вместе с кодом.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode verify request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	grant, err := h.service.VerifyOTP(ctx, req.Email, req.OTP, r.Header.Get(api.HeaderCSRFToken))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			h.sendError(w, "invalid email", http.StatusBadRequest)
		case errors.Is(err, auth.ErrInvalidCSRF):
			h.logger.WarnContext(ctx, "OTP verification with invalid CSRF token")
			h.sendError(w, "invalid CSRF token", http.StatusForbidden)
		case errors.Is(err, auth.ErrInvalidOTP):
			h.sendError(w, "invalid or expired code", http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(ctx, "failed to verify OTP", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := api.AuthResponse{
		User:         toAPIUser(grant.User),
		SessionToken: grant.Token,
		CSRFToken:    grant.Session.CSRFToken,
		ExpiresAt:    api.FormatTime(grant.Session.ExpiresAt),
		Message:      MsgAuthenticated,
		SessionID:    grant.Session.ID,
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Logout обрабатывает POST /logout.
// Best-effort: всегда отвечает 200, даже если сессия уже не существует.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if session, ok := SessionFromContext(ctx); ok {
		if err := h.service.Logout(ctx, session.ID); err != nil {
			h.logger.WarnContext(ctx, "failed to delete session", slog.Any("error", err))
		}
		h.sendJSON(w, api.AuthResponse{Message: MsgLoggedOut}, http.StatusOK)
		return
	}

	// Сессия не прошла проверку (например, истекла): пробуем удалить по токену
	token := BearerToken(r)
	if token == "" {
		var req api.LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.SessionToken
		}
	}

	if token != "" {
		if err := h.service.LogoutToken(ctx, token); err != nil {
			h.logger.WarnContext(ctx, "failed to delete session", slog.Any("error", err))
		}
	}

	h.sendJSON(w, api.AuthResponse{Message: MsgLoggedOut}, http.StatusOK)
}

// Me обрабатывает GET /me
// Требует session middleware
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := SessionFromContext(ctx)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUser(ctx, session.ID)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			h.sendError(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.MeResponse{
		User:      *toAPIUser(user),
		ExpiresAt: api.FormatTime(session.ExpiresAt),
	}

	h.sendJSON(w, resp, http.StatusOK)
}

func challengeResponse(challenge *auth.Challenge, message string) api.AuthResponse {
	return api.AuthResponse{
		User:        toAPIUser(challenge.User),
		CSRFToken:   challenge.CSRFToken,
		ExpiresAt:   api.FormatTime(challenge.ExpiresAt),
		Message:     message,
		RequiresOTP: true,
	}
}

func toAPIUser(user *models.User) *api.User {
	if user == nil {
		return nil
	}
	return &api.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: api.FormatTime(user.CreatedAt),
		UpdatedAt: api.FormatTime(user.UpdatedAt),
	}
}

// BearerToken извлекает токен из "Authorization: Bearer <token>".
// Returns "" if the header is missing or malformed
func BearerToken(r *http.Request) string {
	header := r.Header.Get(api.HeaderAuthorization)
	if len(header) < len(api.BearerPrefix) || !strings.EqualFold(header[:len(api.BearerPrefix)], api.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(api.BearerPrefix):])
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	SendJSON(h.logger, w, data, statusCode)
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	SendError(h.logger, w, message, statusCode)
}

// SendJSON пишет JSON ответ с указанным статусом
func SendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// SendError пишет {error, message}
func SendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	SendJSON(logger, w, resp, statusCode)
}
