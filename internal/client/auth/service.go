// Package auth drives the email + OTP flow on the client.
//
// The current stage is never cached: it is derived from token storage on
// every call, so a login or logout done by another process is picked up
// immediately.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/authflow/internal/autherr"
	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/session"
	"github.com/iudanet/authflow/internal/validation"
	pkgapi "github.com/iudanet/authflow/pkg/api"
)

// User-facing messages of locally detected failures
const (
	MsgSessionExpired     = "Session expired. Please try again."
	MsgSessionSetupFailed = "Session setup failed. Please try again."
)

// DefaultRetryBase is the first RegisterWithRetry delay; each next one doubles
const DefaultRetryBase = time.Second

// API is the subset of the HTTP client used by the flow.
// Implementations ingest tokens from successful responses before returning.
type API interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.AuthResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.AuthResponse, error)
	VerifyOTP(ctx context.Context, req pkgapi.VerifyOTPRequest) (*pkgapi.AuthResponse, error)
	Logout(ctx context.Context, req pkgapi.LogoutRequest) (*pkgapi.AuthResponse, error)
}

// Stage is a step of the login flow
type Stage int

const (
	// StageAnonymous - нет ни сессии, ни pre-session CSRF токена
	StageAnonymous Stage = iota
	// StageCredentialed - email принят, ждем OTP
	StageCredentialed
	// StageAuthenticated - есть валидная сессия с пользователем
	StageAuthenticated
)

func (s Stage) String() string {
	switch s {
	case StageAnonymous:
		return "anonymous"
	case StageCredentialed:
		return "awaiting_otp"
	case StageAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result содержит результат шага авторизации
type Result struct {
	User        *pkgapi.User
	Message     string
	SessionID   string
	Stage       Stage
	RequiresOTP bool
}

// Service предоставляет функции авторизации
type Service struct {
	api       API
	csrf      *csrf.Manager
	session   *session.Manager
	logger    *slog.Logger
	retryBase time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRetryBase sets the first RegisterWithRetry delay
func WithRetryBase(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// NewService создает новый сервис авторизации
func NewService(apiClient API, csrfManager *csrf.Manager, sessionManager *session.Manager, opts ...Option) *Service {
	s := &Service{
		api:       apiClient,
		csrf:      csrfManager,
		session:   sessionManager,
		logger:    slog.Default(),
		retryBase: DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage derives the current stage from storage
func (s *Service) Stage(ctx context.Context) Stage {
	if s.session.IsValid(ctx) {
		return StageAuthenticated
	}
	if s.csrf.IsValid(ctx) {
		return StageCredentialed
	}
	return StageAnonymous
}

// IsAuthenticated reports whether a valid session with a user is stored
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.session.IsValid(ctx)
}

// Register регистрирует нового пользователя.
// Сервер присылает pre-session CSRF токен и отправляет OTP.
func (s *Service) Register(ctx context.Context, email, password string) (*Result, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, autherr.Wrap(autherr.KindValidation, "invalid email", err)
	}
	s.startOver(ctx)

	resp, err := s.api.Register(ctx, pkgapi.RegisterRequest{Email: email, Password: password})
	if err != nil {
		s.logger.WarnContext(ctx, "registration failed",
			slog.String("kind", autherr.KindOf(err).String()),
			slog.Any("error", err))
		return nil, err
	}

	return s.credentialResult(ctx, resp)
}

// Login начинает вход по email
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, autherr.Wrap(autherr.KindValidation, "invalid email", err)
	}
	s.startOver(ctx)

	resp, err := s.api.Login(ctx, pkgapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.logger.WarnContext(ctx, "login failed",
			slog.String("kind", autherr.KindOf(err).String()),
			slog.Any("error", err))
		return nil, err
	}

	return s.credentialResult(ctx, resp)
}

// startOver завершает текущую сессию перед новым входом.
// Иначе заголовки старой сессии перекроют pre-session CSRF токен в verify-otp.
func (s *Service) startOver(ctx context.Context) {
	if !s.session.IsValid(ctx) {
		return
	}
	s.logger.InfoContext(ctx, "already authenticated, ending current session before new login")
	s.Logout(ctx)
}

// credentialResult определяет стадию после register/login.
// Сервер может сразу выдать сессию, минуя OTP.
func (s *Service) credentialResult(ctx context.Context, resp *pkgapi.AuthResponse) (*Result, error) {
	result := &Result{
		User:        resp.User,
		Message:     resp.Message,
		SessionID:   resp.SessionID,
		RequiresOTP: resp.RequiresOTP,
	}

	switch {
	case resp.HasSession():
		if !s.session.IsValid(ctx) {
			return nil, autherr.New(autherr.KindStorage, MsgSessionSetupFailed)
		}
		result.Stage = StageAuthenticated
	case resp.RequiresOTP:
		result.Stage = StageCredentialed
	default:
		result.Stage = s.Stage(ctx)
	}

	s.logger.InfoContext(ctx, "credentials accepted",
		slog.String("stage", result.Stage.String()),
		slog.Bool("requires_otp", result.RequiresOTP))

	return result, nil
}

// VerifyOTP завершает вход одноразовым кодом.
//
// Без валидного CSRF токена запрос заведомо отклонится сервером, поэтому
// ошибка возвращается локально, без сетевого вызова. Успех означает, что
// сессия сохранена и читается из хранилища: ответ 200 без сохраненной
// сессии считается ошибкой.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Result, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, autherr.Wrap(autherr.KindValidation, "invalid email", err)
	}
	if err := validation.ValidateOTP(code); err != nil {
		return nil, autherr.Wrap(autherr.KindValidation, "invalid OTP", err)
	}

	if !s.csrf.IsValid(ctx) {
		s.logger.InfoContext(ctx, "no valid CSRF token, OTP verification skipped")
		return nil, autherr.New(autherr.KindUnauthorized, MsgSessionExpired)
	}

	resp, err := s.api.VerifyOTP(ctx, pkgapi.VerifyOTPRequest{Email: email, OTP: code})
	if err != nil {
		if autherr.IsKind(err, autherr.KindStorage) {
			return nil, autherr.Wrap(autherr.KindStorage, MsgSessionSetupFailed, err)
		}
		return nil, err
	}

	if !resp.HasSession() {
		return nil, autherr.New(autherr.KindServerError, "server did not issue a session")
	}

	if !s.session.IsValid(ctx) {
		s.logger.ErrorContext(ctx, "session not valid right after storing it")
		return nil, autherr.New(autherr.KindStorage, MsgSessionSetupFailed)
	}

	s.logger.InfoContext(ctx, "OTP verified, session established", slog.String("session_id", resp.SessionID))

	return &Result{
		Stage:     StageAuthenticated,
		User:      resp.User,
		Message:   resp.Message,
		SessionID: resp.SessionID,
	}, nil
}

// Logout выполняет выход из системы.
// Сервер уведомляется по возможности, локальное состояние очищается всегда.
func (s *Service) Logout(ctx context.Context) {
	rec, ok := s.session.Read(ctx)
	if !ok || !rec.HasIdentity() {
		// Сессии нет: уведомлять сервер не о чем, убираем возможные остатки
		s.session.Clear(ctx)
		return
	}

	req := pkgapi.LogoutRequest{SessionToken: rec.SessionToken, Email: rec.User.Email}
	if _, err := s.api.Logout(ctx, req); err != nil {
		// Не прерываем процесс, если сервер недоступен
		s.logger.WarnContext(ctx, "failed to logout on server", slog.Any("error", err))
	}

	s.session.Clear(ctx)
	s.logger.InfoContext(ctx, "logged out")
}

// RegisterWithRetry is Register with exponential backoff for transport
// failures (network errors and timeouts). maxAttempts counts the first try.
// Any other error is returned immediately.
func (s *Service) RegisterWithRetry(ctx context.Context, email, password string, maxAttempts int) (*Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(s.retryBase))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*Result, error) {
		attempt++
		result, err := s.Register(ctx, email, password)
		if err != nil {
			if autherr.IsRetryable(err) && attempt < maxAttempts {
				s.logger.WarnContext(ctx, "registration attempt failed, retrying",
					slog.Int("attempt", attempt),
					slog.Int("max_attempts", maxAttempts),
					slog.Any("error", err))
				return nil, retry.RetryableError(err)
			}
			return nil, err
		}
		return result, nil
	})
}

// Status is a snapshot of the local auth state
type Status struct {
	CSRF    csrf.Info
	Session session.Info
	Stage   Stage
}

// Status describes the current local state without contacting the server
func (s *Service) Status(ctx context.Context) Status {
	return Status{
		Stage:   s.Stage(ctx),
		Session: s.session.Info(ctx),
		CSRF:    s.csrf.Info(ctx),
	}
}
