package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/authflow/internal/client/csrf"
	"github.com/iudanet/authflow/internal/client/storage"
	"github.com/iudanet/authflow/internal/client/storage/memory"
	"github.com/iudanet/authflow/internal/client/storage/storagetest"
	"github.com/iudanet/authflow/pkg/api"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManagers(store storage.KV) (*Manager, *csrf.Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	csrfManager := csrf.NewManager(store, csrf.WithClock(clock.Now))
	return NewManager(store, csrfManager, WithClock(clock.Now)), csrfManager, clock
}

func testUser() *api.User {
	return &api.User{ID: "u1", Email: "a@b.com", CreatedAt: "2026-10-19T12:00:00Z", UpdatedAt: "2026-10-19T12:00:00Z"}
}

func TestManager_StoreThenRead(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManagers(memory.New())
	expiresAt := clock.Now().Add(time.Hour)

	require.NoError(t, m.Store(ctx, "s1", "c1", expiresAt, testUser()))

	rec, ok := m.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, &Record{
		SessionToken: "s1",
		CSRFToken:    "c1",
		ExpiresAt:    expiresAt,
		User:         testUser(),
	}, rec)
	assert.True(t, m.IsValid(ctx))
}

func TestManager_WritesSecondaryTokenKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, _, clock := newTestManagers(store)

	require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))

	token, ok := store.Get(ctx, storage.KeySessionToken)
	require.True(t, ok)
	assert.Equal(t, "s1", token)
}

func TestManager_StoreWithoutUserFails(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, _, clock := newTestManagers(store)

	err := m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), nil)
	assert.ErrorIs(t, err, storage.ErrVerifyFailed)

	err = m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), &api.User{Email: "a@b.com"})
	assert.ErrorIs(t, err, storage.ErrVerifyFailed)

	// Fail closed: ничего не осталось в хранилище
	assert.Equal(t, 0, store.Len())
	assert.False(t, m.IsValid(ctx))
}

func TestManager_StoreReadBackMismatch(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New()
	// Другой процесс успел записать свою сессию между записью и проверкой
	store.Tamper(storage.KeySessionData, `{"sessionToken":"other","csrfToken":"c9","expiresAt":"2099-01-01T00:00:00Z","user":{"id":"u9","email":"x@y.com"}}`)
	m, _, clock := newTestManagers(store)

	err := m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser())
	assert.ErrorIs(t, err, storage.ErrVerifyFailed)

	_, ok := store.Get(ctx, storage.KeySessionData)
	assert.False(t, ok)
	_, ok = store.Get(ctx, storage.KeySessionToken)
	assert.False(t, ok)
}

func TestManager_StoreWriteErrors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		err     error
		wantErr error
	}{
		{name: "session data unavailable", key: storage.KeySessionData, err: storage.ErrUnavailable, wantErr: storage.ErrUnavailable},
		{name: "session token write fails", key: storage.KeySessionToken, err: errors.New("io error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storagetest.New()
			store.FailSet(tt.key, tt.err)
			m, _, clock := newTestManagers(store)

			err := m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestManager_UnavailableStorage(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManagers(storage.Unavailable{})

	err := m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser())
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	_, ok := m.Read(ctx)
	assert.False(t, ok)
	assert.False(t, m.IsValid(ctx))
	assert.Empty(t, m.Headers(ctx))
	assert.NotPanics(t, func() { m.Clear(ctx) })
}

func TestManager_ExpiredSessionIsEvicted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, csrfManager, clock := newTestManagers(store)

	require.NoError(t, csrfManager.Store(ctx, "c1", clock.Now().Add(2*time.Hour)))
	require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))

	clock.Advance(time.Hour)

	_, ok := m.Read(ctx)
	assert.False(t, ok)
	// Все четыре ключа удалены, включая CSRF
	assert.Equal(t, 0, store.Len())

	_, ok = m.Read(ctx)
	assert.False(t, ok)
}

func TestManager_MalformedDataIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, storage.KeySessionData, "{not json"))
	m, _, _ := newTestManagers(store)

	_, ok := m.Read(ctx)
	assert.False(t, ok)
	assert.False(t, m.IsValid(ctx))
	assert.Nil(t, m.User(ctx))
}

func TestManager_IsValidRequiresUserID(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, _, clock := newTestManagers(store)

	// Запись без user.id, положенная в обход Store
	raw := `{"sessionToken":"s1","csrfToken":"c1","expiresAt":"` +
		api.FormatTime(clock.Now().Add(time.Hour)) + `","user":{"email":"a@b.com"}}`
	require.NoError(t, store.Set(ctx, storage.KeySessionData, raw))

	rec, ok := m.Read(ctx)
	require.True(t, ok, "record itself is well-formed and unexpired")
	assert.Equal(t, "s1", rec.SessionToken)
	assert.False(t, m.IsValid(ctx))
	assert.Empty(t, m.Headers(ctx))
}

func TestManager_IsExpiringSoon(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want bool
	}{
		{name: "hour left", ttl: time.Hour, want: false},
		{name: "just over five minutes", ttl: 5*time.Minute + time.Second, want: false},
		{name: "exactly five minutes", ttl: 5 * time.Minute, want: true},
		{name: "one minute left", ttl: time.Minute, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, _, clock := newTestManagers(memory.New())
			require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(tt.ttl), testUser()))

			assert.Equal(t, tt.want, m.IsExpiringSoon(ctx))
			assert.Equal(t, tt.want, m.Info(ctx).ExpiringSoon)
		})
	}

	m, _, _ := newTestManagers(memory.New())
	assert.False(t, m.IsExpiringSoon(context.Background()), "no session")
}

func TestManager_Headers(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManagers(memory.New())

	assert.Empty(t, m.Headers(ctx))

	require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer s1",
		"X-CSRF-Token":  "c1",
	}, m.Headers(ctx))
}

func TestManager_IngestServerResponse(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManagers(memory.New())

	resp := &api.AuthResponse{
		SessionToken: "s1",
		CSRFToken:    "c1",
		ExpiresAt:    api.FormatTime(clock.Now().Add(time.Hour)),
		User:         &api.User{ID: "u1", Email: "a@b.com"},
	}

	require.NoError(t, m.Ingest(ctx, resp))
	assert.True(t, m.IsValid(ctx))

	headers := m.Headers(ctx)
	assert.Equal(t, "Bearer s1", headers["Authorization"])
	assert.Equal(t, "c1", headers["X-CSRF-Token"])

	// Ответ без полной тройки игнорируется
	require.NoError(t, m.Ingest(ctx, &api.AuthResponse{CSRFToken: "c2", ExpiresAt: resp.ExpiresAt}))
	rec, _ := m.Read(ctx)
	assert.Equal(t, "c1", rec.CSRFToken)

	assert.Error(t, m.Ingest(ctx, &api.AuthResponse{SessionToken: "s2", CSRFToken: "c2", ExpiresAt: "bad"}))
}

func TestManager_ClearRemovesAllFourKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m, csrfManager, clock := newTestManagers(store)

	require.NoError(t, csrfManager.Store(ctx, "c1", clock.Now().Add(time.Hour)))
	require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))
	require.Equal(t, 4, store.Len())

	m.Clear(ctx)

	for _, key := range []string{storage.KeyCSRFToken, storage.KeyCSRFExpiresAt, storage.KeySessionToken, storage.KeySessionData} {
		_, ok := store.Get(ctx, key)
		assert.False(t, ok, key)
	}
	assert.False(t, csrfManager.IsValid(ctx))
}

func TestManager_ClearWithoutCSRFManager(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	clock := &fakeClock{t: time.Now()}
	m := NewManager(store, nil, WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, storage.KeyCSRFToken, "c1"))
	require.NoError(t, store.Set(ctx, storage.KeyCSRFExpiresAt, "2099-01-01T00:00:00Z"))
	require.NoError(t, m.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))

	m.Clear(ctx)
	assert.Equal(t, 0, store.Len())
}

func TestManager_NoInProcessCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	first, _, clock := newTestManagers(store)
	second := NewManager(store, csrf.NewManager(store, csrf.WithClock(clock.Now)), WithClock(clock.Now))

	require.NoError(t, first.Store(ctx, "s1", "c1", clock.Now().Add(time.Hour), testUser()))
	assert.True(t, second.IsValid(ctx))

	// Выход в "другой вкладке" виден сразу
	second.Clear(ctx)
	assert.False(t, first.IsValid(ctx))
}

func TestManager_Info(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManagers(memory.New())

	assert.Equal(t, Info{}, m.Info(ctx))

	expiresAt := clock.Now().Add(time.Hour)
	require.NoError(t, m.Store(ctx, "s1", "c1", expiresAt, testUser()))

	info := m.Info(ctx)
	assert.True(t, info.HasSession)
	assert.True(t, info.IsValid)
	assert.Equal(t, expiresAt, info.ExpiresAt)
	assert.Equal(t, "u1", info.User.ID)
	assert.Equal(t, "u1", m.User(ctx).ID)
}
