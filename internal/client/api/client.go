package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/authflow/internal/autherr"
	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/session"
	"github.com/iudanet/authflow/pkg/api"
)

// DefaultTimeout ограничивает каждый запрос, если не задано иное
const DefaultTimeout = 30 * time.Second

// Client представляет HTTP клиент для взаимодействия с сервером авторизации.
// Каждый успешный ответ проходит через менеджеры токенов: CSRF токен и сессия
// сохраняются в хранилище до того, как ответ вернется вызывающему.
type Client struct {
	httpClient *http.Client
	csrf       *csrf.Manager
	session    *session.Manager
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient создает новый API клиент
func NewClient(baseURL string, csrfManager *csrf.Manager, sessionManager *session.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		csrf:    csrfManager,
		session: sessionManager,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				if len(via) == 0 {
					return nil
				}
				credentials := []string{api.HeaderAuthorization, api.HeaderCSRFToken}
				// Токены уходят только на тот же хост; X-CSRF-Token net/http сам не убирает
				if req.URL.Host != via[0].URL.Host {
					for _, h := range credentials {
						req.Header.Del(h)
					}
					return nil
				}
				for _, h := range credentials {
					if v := via[0].Header.Get(h); v != "" {
						req.Header.Set(h, v)
					}
				}
				return nil
			},
		}
	}

	return c
}

// Register регистрирует нового пользователя. CSRF заголовок не отправляется.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	return c.doAuth(ctx, api.PathRegister, req, false)
}

// Login начинает вход. CSRF заголовок не отправляется.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error) {
	return c.doAuth(ctx, api.PathLogin, req, false)
}

// VerifyOTP подтверждает одноразовый код с текущим CSRF токеном
func (c *Client) VerifyOTP(ctx context.Context, req api.VerifyOTPRequest) (*api.AuthResponse, error) {
	return c.doAuth(ctx, api.PathVerifyOTP, req, true)
}

// Logout уведомляет сервер о выходе. Локальное состояние здесь не очищается.
func (c *Client) Logout(ctx context.Context, req api.LogoutRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.do(ctx, http.MethodPost, api.PathLogout, req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me возвращает профиль текущего пользователя
func (c *Client) Me(ctx context.Context) (*api.MeResponse, error) {
	var resp api.MeResponse
	if err := c.do(ctx, http.MethodGet, api.PathMe, nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, api.PathHealth, nil, false, nil)
}

// doAuth выполняет POST к auth endpoint и сохраняет выданные токены
func (c *Client) doAuth(ctx context.Context, path string, body any, includeCSRF bool) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, includeCSRF, &resp); err != nil {
		return nil, err
	}

	if err := c.ingest(ctx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ingest сохраняет токены из успешного ответа.
// Ошибка записи CSRF токена не фатальна, ошибка записи сессии фатальна
// и убирает CSRF токен, сохраненный из того же ответа.
func (c *Client) ingest(ctx context.Context, resp *api.AuthResponse) error {
	if c.csrf != nil {
		if err := c.csrf.Ingest(ctx, resp); err != nil {
			c.logger.WarnContext(ctx, "failed to store CSRF token from response", slog.Any("error", err))
		}
	}

	if c.session != nil && resp.HasSession() {
		if err := c.session.Ingest(ctx, resp); err != nil {
			c.logger.ErrorContext(ctx, "failed to store session from response", slog.Any("error", err))
			// CSRF токен из этого ответа принадлежит несохраненной сессии
			if c.csrf != nil {
				c.csrf.Clear(ctx)
			}
			return autherr.Wrap(autherr.KindStorage, "Session storage failed", err)
		}
	}

	return nil
}

// headers собирает заголовки запроса: сначала CSRF, затем сессия
func (c *Client) headers(ctx context.Context, method string, includeCSRF bool) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}

	if includeCSRF && c.csrf != nil {
		for k, v := range c.csrf.Headers(ctx, method) {
			headers[k] = v
		}
	}

	if c.session != nil {
		for k, v := range c.session.Headers(ctx) {
			headers[k] = v
		}
	}

	return headers
}

// do выполняет HTTP запрос и классифицирует ошибки через autherr
func (c *Client) do(ctx context.Context, method, path string, body any, includeCSRF bool, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers(ctx, method, includeCSRF) {
		req.Header.Set(k, v)
	}

	c.logger.DebugContext(ctx, "sending request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Bool("has_csrf", req.Header.Get(api.HeaderCSRFToken) != ""),
		slog.Bool("has_session", req.Header.Get(api.HeaderAuthorization) != ""))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherr.FromTransport(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return autherr.FromTransport(err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return autherr.Wrap(autherr.KindServerError, "invalid server response", err)
		}
	}

	return nil
}

// statusError строит ошибку из тела {error, message}; message важнее error
func statusError(status int, body []byte) *autherr.Error {
	var errResp api.ErrorResponse
	message := ""
	if err := json.Unmarshal(body, &errResp); err == nil {
		message = errResp.Message
		if message == "" {
			message = errResp.Error
		}
	}
	return autherr.FromStatus(status, message)
}
