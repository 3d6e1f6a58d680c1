package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv    *Server
	engine *goSession.Engine
	users  *identity.Store
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithUsers(t, nil)
}

// newTestEnvWithUsers builds the server over wrap(store) when wrap is set.
func newTestEnvWithUsers(t *testing.T, wrap func(*identity.Store) UserStore) *testEnv {
	t.Helper()
	return buildTestEnv(t, nil, wrap)
}

// newTestEnvWithConfig applies tweak to the server config before building.
func newTestEnvWithConfig(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	return buildTestEnv(t, tweak, nil)
}

func buildTestEnv(t *testing.T, tweak func(*config.Config), wrap func(*identity.Store) UserStore) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := identity.Open(filepath.Join(t.TempDir(), "users.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Migrate(context.Background())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Readiness.Attempts = 2
	cfg.Readiness.Delay = time.Millisecond
	if tweak != nil {
		tweak(&cfg)
	}

	ecfg := cfg.Engine()
	ecfg.Password.Memory = 8 * 1024
	ecfg.Password.Time = 1
	ecfg.Password.Parallelism = 1

	engine, err := goSession.New().
		WithConfig(ecfg).
		WithRedis(client).
		WithIdentityResolver(store).
		WithLogger(quietLogger()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	var users UserStore = store
	if wrap != nil {
		users = wrap(store)
	}
	srv, err := New(cfg, engine, users, quietLogger())
	require.NoError(t, err)

	return &testEnv{srv: srv, engine: engine, users: store, mr: mr}
}

func (e *testEnv) createUser(t *testing.T, username, pw string, admin bool) *identity.Account {
	t.Helper()
	hash, err := e.engine.HashPassword(pw)
	require.NoError(t, err)
	a, err := e.users.Create(context.Background(), identity.NewAccount{
		Username:     username,
		Name:         username,
		PasswordHash: hash,
		Admin:        admin,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		rdr = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, pw string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: username, Password: pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorCode {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Code
}

func TestLoginSetsCookieAndMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice", "correct horse battery", false)

	rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, alice.ID, resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "SESSION", cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Expires.IsZero(), "session cookie must not carry a fixed expiry")
	assert.Zero(t, cookies[0].MaxAge)
	assert.NotContains(t, rec.Header().Get("Set-Cookie"), "Expires=")
	assert.False(t, resp.ExpiresAt.IsZero())
	assert.True(t, env.mr.Exists("S:"+resp.Token))

	rec = env.do(t, http.MethodGet, "/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.User.Username)
	assert.False(t, me.ExpiresAt.IsZero())

	rec = env.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeNotAuthorized, errorCode(t, rec))
}

func TestLoginBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct horse battery", false)
	token := env.login(t, "alice", "correct horse battery")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct horse battery", false)

	rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "wrong password!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeInvalidCredentials, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "nobody", Password: "whatever12345"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeInvalidCredentials, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.CodeInvalidRequest, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct horse battery", false)

	limit := env.engine.Config().Security.LoginThrottle.MaxAttempts
	for i := 0; i < limit; i++ {
		rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "wrong password!"})
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "correct horse battery"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, middleware.CodeTooManyLoginAttempts, errorCode(t, rec))
}

func TestLoginIPThrottleIgnoresForwardedHeaders(t *testing.T) {
	throttled := func(trust bool) func(*config.Config) {
		return func(c *config.Config) {
			c.Server.TrustProxyHeaders = trust
			c.Login.ThrottleEnabled = true
			c.Login.IPThrottle = true
			c.Login.MaxAttempts = 2
		}
	}
	attempt := func(t *testing.T, env *testEnv, n int) *httptest.ResponseRecorder {
		t.Helper()
		body, err := json.Marshal(loginRequest{Username: "sprayed" + strconv.Itoa(n), Password: "wrong password!"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(n))
		req.Header.Set("X-Real-IP", "203.0.113."+strconv.Itoa(n))
		req.Header.Set("True-Client-IP", "203.0.113."+strconv.Itoa(n))
		rec := httptest.NewRecorder()
		env.srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("untrusted headers", func(t *testing.T) {
		env := newTestEnvWithConfig(t, throttled(false))
		for n := 1; n <= 2; n++ {
			rec := attempt(t, env, n)
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", n)
		}

		rec := attempt(t, env, 3)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, "a fresh forwarded address must not reset the IP counter")
		assert.Equal(t, middleware.CodeTooManyLoginAttempts, errorCode(t, rec))
	})

	t.Run("trusted proxy", func(t *testing.T) {
		env := newTestEnvWithConfig(t, throttled(true))
		for n := 1; n <= 3; n++ {
			rec := attempt(t, env, n)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d counts against its forwarded address", n)
		}
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct horse battery", false)
	token := env.login(t, "alice", "correct horse battery")

	rec := env.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.False(t, env.mr.Exists("S:"+token))

	rec = env.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "anonymous logout is a no-op")
}

func TestManagementRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "correct horse battery", false)
	env.createUser(t, "root", "root password 1", true)
	userToken := env.login(t, "alice", "correct horse battery")
	adminToken := env.login(t, "root", "root password 1")

	rec := env.do(t, http.MethodGet, "/management/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/management/user", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeNotAuthorized, errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/management/user/", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "trailing slash keeps the admin policy")

	rec = env.do(t, http.MethodGet, "/management/user/", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/management/user", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse[userDTO]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "alice", list.Items[0].Username)
	assert.True(t, list.Items[1].Admin)
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "root", "root password 1", true)
	admin := env.login(t, "root", "root password 1")

	rec := env.do(t, http.MethodPut, "/management/user", admin, createUserRequest{
		Username: "bob", Name: "Bob", Password: "bob password 1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created userDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bob", created.Username)
	assert.True(t, created.Active)
	assert.False(t, created.Admin)

	env.login(t, "bob", "bob password 1")

	rec = env.do(t, http.MethodPut, "/management/user", admin, createUserRequest{
		Username: "bob", Password: "another password",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, middleware.CodeUsernameTaken, errorCode(t, rec))

	rec = env.do(t, http.MethodPut, "/management/user/", admin, createUserRequest{
		Username: "erin", Password: "erin password 1",
	})
	require.Equal(t, http.StatusOK, rec.Code, "PUT /management/user/ creates too")

	rec = env.do(t, http.MethodPut, "/management/user", admin, createUserRequest{Username: "carl", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/management/user", admin, `{"username":"dan","password":"long enough pw","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "root", "root password 1", true)
	bob := env.createUser(t, "bob", "bob password 1", false)
	admin := env.login(t, "root", "root password 1")

	rec := env.do(t, http.MethodPost, "/management/user", admin, updateUserRequest{ID: bob.ID, Admin: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated userDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Admin)
	assert.Equal(t, "bob", updated.Name)

	bobToken := env.login(t, "bob", "bob password 1")
	rec = env.do(t, http.MethodGet, "/management/user", bobToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "promotion takes effect on the next request")

	rec = env.do(t, http.MethodPost, "/management/user", admin, updateUserRequest{ID: bob.ID, Password: "new bob password"})
	require.Equal(t, http.StatusOK, rec.Code)
	env.login(t, "bob", "new bob password")

	rec = env.do(t, http.MethodPost, "/management/user", admin, updateUserRequest{ID: 999, Admin: false})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, middleware.CodeUserNotFound, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/management/user", admin, updateUserRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "root", "root password 1", true)
	bob := env.createUser(t, "bob", "bob password 1", false)
	admin := env.login(t, "root", "root password 1")
	bobToken := env.login(t, "bob", "bob password 1")

	path := "/management/user/" + strconv.FormatInt(bob.ID, 10)
	rec := env.do(t, http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.False(t, env.mr.Exists("S:"+bobToken), "current session removed")

	rec = env.do(t, http.MethodGet, "/auth/me", bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Username: "bob", Password: "bob password 1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "inactive users cannot log in")

	rec = env.do(t, http.MethodGet, "/management/user/404", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, middleware.CodeUserNotFound, errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/management/user/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var h healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "ok", h.SessionStore)
}

type unreachableUsers struct {
	*identity.Store
}

func (unreachableUsers) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthDegraded(t *testing.T) {
	env := newTestEnvWithUsers(t, func(s *identity.Store) UserStore { return unreachableUsers{s} })

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var h healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "ok", h.SessionStore)
	assert.Equal(t, "unavailable", h.UserDatabase)
}

func TestWaitReady(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.srv.WaitReady(context.Background()))

	down := newTestEnvWithUsers(t, func(s *identity.Store) UserStore { return unreachableUsers{s} })
	err := down.srv.WaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user database")
}

func TestMetricsEndpointIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "root", "root password 1", true)
	admin := env.login(t, "root", "root password 1")

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gosession_login_success_total 1")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, middleware.CodeAPINotFound, errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPolicyTable(t *testing.T) {
	env := newTestEnv(t)
	table := env.srv.Policies()

	p, found := table.Lookup(http.MethodPost, "/auth/login")
	require.True(t, found)
	assert.Nil(t, p)

	p, found = table.Lookup(http.MethodPost, "/auth/logout")
	require.True(t, found)
	assert.True(t, p.AllowAnonymous)

	for _, route := range []struct{ method, pattern string }{
		{http.MethodGet, "/management/user"},
		{http.MethodPut, "/management/user"},
		{http.MethodPost, "/management/user"},
		{http.MethodGet, "/management/user/{id}"},
		{http.MethodDelete, "/management/user/{id}"},
		{http.MethodGet, "/metrics"},
	} {
		p, found := table.Lookup(route.method, route.pattern)
		require.True(t, found, route.pattern)
		assert.True(t, p.RequireAdminPermission, route.pattern)
	}
}

func TestServeDrainsInFlightRequests(t *testing.T) {
	env := newTestEnvWithConfig(t, func(c *config.Config) {
		c.Server.ShutdownTimeout = 5 * time.Second
	})

	started := make(chan struct{})
	release := make(chan struct{})
	handlerErr := make(chan error, 1)
	env.srv.router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		handlerErr <- r.Context().Err()
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- env.srv.Serve(ctx, ln) }()

	type result struct {
		status int
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		resCh <- result{status: resp.StatusCode}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-served:
		t.Fatalf("Serve returned %v with a request still in flight", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	assert.NoError(t, <-handlerErr, "shutdown must not cancel in-flight requests")
	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the drain")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(config.Default(), nil, nil, nil)
	assert.Error(t, err)
}
