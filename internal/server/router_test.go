package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/authflow/internal/client/api"
	clientauth "github.com/iudanet/authflow/internal/client/auth"
	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/session"
	clientmemory "github.com/iudanet/authflow/internal/client/storage/memory"
	"github.com/iudanet/authflow/internal/server/auth"
	"github.com/iudanet/authflow/internal/server/jwt"
	"github.com/iudanet/authflow/internal/server/storage/memory"
	"github.com/iudanet/authflow/pkg/api"
)

type inbox struct {
	codes map[string]string
	mu    sync.Mutex
}

func (i *inbox) SendOTP(_ context.Context, email, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[email] = code
	return nil
}

func (i *inbox) code(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[email]
}

type client struct {
	auth    *clientauth.Service
	api     *clientapi.Client
	session *session.Manager
}

func setupServer(t *testing.T) (*httptest.Server, *inbox) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mail := &inbox{codes: make(map[string]string)}
	service := auth.NewService(memory.New(), jwt.NewService("router-test-secret"), auth.Config{
		Sender: mail,
		Logger: logger,
	})

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Logger:  logger,
		Auth:    service,
		Version: "test",
		Storage: "memory",
	}))
	t.Cleanup(srv.Close)

	return srv, mail
}

func newClient(baseURL string) *client {
	store := clientmemory.New()
	csrfManager := csrf.NewManager(store)
	sessionManager := session.NewManager(store, csrfManager)
	apiClient := clientapi.NewClient(baseURL, csrfManager, sessionManager)

	return &client{
		auth:    clientauth.NewService(apiClient, csrfManager, sessionManager),
		api:     apiClient,
		session: sessionManager,
	}
}

func TestRouter_FullFlow(t *testing.T) {
	srv, mail := setupServer(t)
	ctx := context.Background()
	c := newClient(srv.URL)

	require.NoError(t, c.api.Health(ctx))

	result, err := c.auth.Register(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageCredentialed, result.Stage)
	assert.True(t, result.RequiresOTP)

	result, err = c.auth.VerifyOTP(ctx, "alice@example.com", mail.code("alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageAuthenticated, result.Stage)
	require.NotNil(t, result.User)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.NotEmpty(t, result.SessionID)

	me, err := c.api.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, me.User.ID)

	c.auth.Logout(ctx)
	assert.Equal(t, clientauth.StageAnonymous, c.auth.Stage(ctx))

	// сервер тоже забыл сессию
	_, err = c.api.Me(ctx)
	assert.Error(t, err)
}

func TestRouter_LoginAfterLogout(t *testing.T) {
	srv, mail := setupServer(t)
	ctx := context.Background()
	c := newClient(srv.URL)

	_, err := c.auth.Register(ctx, "bob@example.com", "")
	require.NoError(t, err)
	_, err = c.auth.VerifyOTP(ctx, "bob@example.com", mail.code("bob@example.com"))
	require.NoError(t, err)
	c.auth.Logout(ctx)

	result, err := c.auth.Login(ctx, "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageCredentialed, result.Stage)

	result, err = c.auth.VerifyOTP(ctx, "bob@example.com", mail.code("bob@example.com"))
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageAuthenticated, result.Stage)
}

func TestRouter_LoginWhileAuthenticated(t *testing.T) {
	srv, mail := setupServer(t)
	ctx := context.Background()
	c := newClient(srv.URL)

	_, err := c.auth.Register(ctx, "erin@example.com", "")
	require.NoError(t, err)
	_, err = c.auth.VerifyOTP(ctx, "erin@example.com", mail.code("erin@example.com"))
	require.NoError(t, err)
	old, ok := c.session.Read(ctx)
	require.True(t, ok)

	result, err := c.auth.Login(ctx, "erin@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageCredentialed, result.Stage)

	result, err = c.auth.VerifyOTP(ctx, "erin@example.com", mail.code("erin@example.com"))
	require.NoError(t, err)
	assert.Equal(t, clientauth.StageAuthenticated, result.Stage)

	rec, ok := c.session.Read(ctx)
	require.True(t, ok)
	assert.NotEqual(t, old.SessionToken, rec.SessionToken)

	_, err = c.api.Me(ctx)
	assert.NoError(t, err)

	// старая сессия закрыта на сервере
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+api.PathMe, nil)
	require.NoError(t, err)
	req.Header.Set(api.HeaderAuthorization, api.BearerPrefix+old.SessionToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()

	_, err := newClient(srv.URL).auth.Register(ctx, "carol@example.com", "")
	require.NoError(t, err)

	_, err = newClient(srv.URL).auth.Register(ctx, "carol@example.com", "")
	require.Error(t, err)
}

func TestRouter_MeRequiresSession(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + api.PathMe)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Unauthorized", body.Error)
}

func TestRouter_LogoutRequiresSessionCSRF(t *testing.T) {
	srv, mail := setupServer(t)
	ctx := context.Background()
	c := newClient(srv.URL)

	_, err := c.auth.Register(ctx, "dave@example.com", "")
	require.NoError(t, err)
	_, err = c.auth.VerifyOTP(ctx, "dave@example.com", mail.code("dave@example.com"))
	require.NoError(t, err)

	rec, ok := c.session.Read(ctx)
	require.True(t, ok)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+api.PathLogout, strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set(api.HeaderAuthorization, api.BearerPrefix+rec.SessionToken)
	req.Header.Set(api.HeaderCSRFToken, "forged")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// сессия осталась действующей
	_, err = c.api.Me(ctx)
	assert.NoError(t, err)
}

func TestRouter_Health(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + api.PathHealth)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"storage":"memory"`)
}
