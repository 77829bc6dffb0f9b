// Package auth implements the server side of the email + OTP flow:
// users, pending one-time codes and sessions behind storage.Storage.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/authflow/internal/crypto"
	"github.com/iudanet/authflow/internal/models"
	"github.com/iudanet/authflow/internal/server/jwt"
	"github.com/iudanet/authflow/internal/server/storage"
	"github.com/iudanet/authflow/internal/validation"
)

// Default lifetimes
const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultOTPTTL     = 10 * time.Minute
)

// Errors returned by Service in addition to the storage sentinels
var (
	// ErrInvalidEmail indicates a malformed email
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidOTP indicates a wrong, expired, consumed or never issued code
	ErrInvalidOTP = errors.New("invalid or expired OTP")
	// ErrInvalidCSRF indicates a CSRF token that does not match the one issued with the code
	ErrInvalidCSRF = errors.New("invalid CSRF token")
	// ErrInvalidSession indicates a missing, expired or forged session token
	ErrInvalidSession = errors.New("invalid or expired session")
)

// OTPSender delivers a code to the user
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogSender "delivers" codes by logging them. Demo only.
type LogSender struct {
	Logger *slog.Logger
}

// SendOTP пишет код в лог
func (s LogSender) SendOTP(ctx context.Context, email, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "OTP issued", slog.String("email", email), slog.String("otp", code))
	return nil
}

// Config содержит параметры сервиса
type Config struct {
	Sender     OTPSender
	Logger     *slog.Logger
	Now        func() time.Time
	SessionTTL time.Duration
	OTPTTL     time.Duration
}

// Challenge is what login hands back while an OTP is pending
type Challenge struct {
	ExpiresAt time.Time
	User      *models.User
	CSRFToken string
	// Code is the plain OTP; it goes to the sender and is never returned over HTTP
	Code string
}

// Grant is an established session
type Grant struct {
	Session *models.Session
	User    *models.User
	Token   string
}

// Service реализует регистрацию, вход по OTP и сессии
type Service struct {
	store      storage.Storage
	tokens     *jwt.Service
	sender     OTPSender
	logger     *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration
	otpTTL     time.Duration
}

// NewService создает сервис авторизации
func NewService(store storage.Storage, tokens *jwt.Service, cfg Config) *Service {
	s := &Service{
		store:      store,
		tokens:     tokens,
		sender:     cfg.Sender,
		logger:     cfg.Logger,
		now:        cfg.Now,
		sessionTTL: cfg.SessionTTL,
		otpTTL:     cfg.OTPTTL,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sender == nil {
		s.sender = LogSender{Logger: s.logger}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.otpTTL <= 0 {
		s.otpTTL = DefaultOTPTTL
	}
	return s
}

func normalizeEmail(email string) (string, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	return email, nil
}

// CreateUser регистрирует email.
// Returns storage.ErrUserAlreadyExists if the email is taken
func (s *Service) CreateUser(ctx context.Context, email string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email))

	return user, nil
}

// LoginUser выдает новый OTP и pre-session CSRF токен.
// Каждый вызов заменяет ожидающий код: действует только последний.
// Returns storage.ErrUserNotFound for an unknown email
func (s *Service) LoginUser(ctx context.Context, email string) (*Challenge, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	code, err := crypto.GenerateOTP()
	if err != nil {
		return nil, err
	}
	codeHash, err := crypto.HashOTP(code)
	if err != nil {
		return nil, err
	}
	csrfToken, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	otp := &models.OTP{
		Email:     email,
		CodeHash:  codeHash,
		CSRFToken: csrfToken,
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}

	if err := s.store.SaveOTP(ctx, otp); err != nil {
		return nil, fmt.Errorf("save otp: %w", err)
	}

	if err := s.sender.SendOTP(ctx, email, code); err != nil {
		// Код, который не дошел до пользователя, не должен оставаться действующим
		_ = s.store.DeleteOTP(ctx, email, codeHash)
		return nil, fmt.Errorf("send otp: %w", err)
	}

	s.logger.InfoContext(ctx, "OTP challenge created",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", otp.ExpiresAt))

	return &Challenge{
		User:      user,
		CSRFToken: csrfToken,
		ExpiresAt: otp.ExpiresAt,
		Code:      code,
	}, nil
}

// VerifyOTP проверяет код и CSRF токен, выданные последним LoginUser,
// и создает сессию. Код одноразовый: успешная проверка его удаляет.
func (s *Service) VerifyOTP(ctx context.Context, email, code, csrfToken string) (*Grant, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	otp, err := s.store.GetOTP(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrOTPNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("get otp: %w", err)
	}

	now := s.now().UTC()
	if otp.Expired(now) {
		_ = s.store.DeleteOTP(ctx, email, otp.CodeHash)
		s.logger.InfoContext(ctx, "expired OTP presented", slog.String("email", email))
		return nil, ErrInvalidOTP
	}

	if csrfToken == "" || subtle.ConstantTimeCompare([]byte(otp.CSRFToken), []byte(csrfToken)) != 1 {
		return nil, ErrInvalidCSRF
	}

	if err := crypto.VerifyOTP(code, otp.CodeHash); err != nil {
		if errors.Is(err, crypto.ErrOTPMismatch) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}

	// Удаление - точка потребления кода: параллельная проверка или код,
	// замененный повторным login, получат ErrOTPNotFound
	if err := s.store.DeleteOTP(ctx, email, otp.CodeHash); err != nil {
		if errors.Is(err, storage.ErrOTPNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("consume otp: %w", err)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsVerified {
		if err := s.store.MarkVerified(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		user.IsVerified = true
		user.UpdatedAt = now
	}

	sessionCSRF, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		CSRFToken: sessionCSRF,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Issue(session.ID, user.ID, user.Email, session.ExpiresAt)
	if err != nil {
		_ = s.store.DeleteSession(ctx, session.ID)
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.logger.InfoContext(ctx, "session created",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID))

	return &Grant{Session: session, User: user, Token: token}, nil
}

// Authenticate resolves a session token to a live session
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	return s.session(ctx, claims.SessionID)
}

func (s *Service) session(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.now()) {
		_ = s.store.DeleteSession(ctx, sessionID)
		return nil, ErrInvalidSession
	}

	return session, nil
}

// GetUser returns the user of a live session.
// Returns ErrInvalidSession if the session is unknown or expired
func (s *Service) GetUser(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Logout deletes the session. An unknown session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.InfoContext(ctx, "session closed", slog.String("session_id", sessionID))
	return nil
}

// LogoutToken deletes the session named by a session token, even an expired one.
// A token with an invalid signature is ignored.
func (s *Service) LogoutToken(ctx context.Context, token string) error {
	claims, err := s.tokens.ValidateSignature(token)
	if err != nil {
		s.logger.DebugContext(ctx, "logout with unusable token", slog.Any("error", err))
		return nil
	}
	return s.Logout(ctx, claims.SessionID)
}

// CleanupExpired removes expired sessions and codes
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return n, nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "cleanup failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "expired records removed", slog.Int("count", n))
			}
		}
	}
}
