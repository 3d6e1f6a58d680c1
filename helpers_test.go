package goSession

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeIdentity is an in-memory identity side. It hands out copies so callers
// can hold stale aggregates the way a real repository would.
type fakeIdentity struct {
	mu        sync.Mutex
	users     map[int64]User
	byName    map[string]int64
	markErr   error
	resolveEr error
	marks     []string
	hashes    map[int64]string
}

func newFakeIdentity(users ...User) *fakeIdentity {
	f := &fakeIdentity{
		users:  make(map[int64]User),
		byName: make(map[string]int64),
		hashes: make(map[int64]string),
	}
	for _, u := range users {
		f.put(u)
	}
	return f
}

func (f *fakeIdentity) put(u User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	if u.Username != "" {
		f.byName[u.Username] = u.ID
	}
}

func (f *fakeIdentity) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		delete(f.byName, u.Username)
	}
	delete(f.users, id)
}

func (f *fakeIdentity) get(id int64) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeIdentity) markCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

func (f *fakeIdentity) ResolveByID(_ context.Context, id int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveEr != nil {
		return nil, f.resolveEr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}
	return &u, nil
}

func (f *fakeIdentity) ResolveByUsername(_ context.Context, username string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := f.users[id]
	return &u, nil
}

func (f *fakeIdentity) MarkLoggedIn(_ context.Context, user *User, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marks = append(f.marks, token)
	if u, ok := f.users[user.ID]; ok {
		u.LastSessionKey = token
		f.users[user.ID] = u
	}
	return nil
}

func (f *fakeIdentity) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[userID] = hash
	if u, ok := f.users[userID]; ok {
		u.PasswordHash = hash
		f.users[userID] = u
	}
	return nil
}

// sequenceTokens yields tokens in order and then repeats the last one.
func sequenceTokens(tokens ...string) TokenGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		t := tokens[i]
		if i < len(tokens)-1 {
			i++
		}
		return t, nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Security.LoginThrottle.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryHarness struct {
	engine   *Engine
	backend  *session.MemoryBackend
	clock    *testClock
	identity *fakeIdentity
	sink     *ChannelSink
}

func newMemoryBackendFor(clock *testClock) *session.MemoryBackend {
	return session.NewMemoryBackend(clock.Now)
}

func newMemoryHarness(t testing.TB, cfg Config, tokens TokenGenerator, users ...User) *memoryHarness {
	t.Helper()
	return buildMemoryHarness(t, cfg, tokens, nil, users...)
}

func newMemoryHarnessWithSink(t testing.TB, cfg Config, sink *ChannelSink, users ...User) *memoryHarness {
	t.Helper()
	return buildMemoryHarness(t, cfg, nil, sink, users...)
}

func buildMemoryHarness(t testing.TB, cfg Config, tokens TokenGenerator, sink *ChannelSink, users ...User) *memoryHarness {
	t.Helper()

	clock := newTestClock()
	backend := newMemoryBackendFor(clock)
	identity := newFakeIdentity(users...)

	b := New().
		WithConfig(cfg).
		WithBackend(backend).
		WithIdentityResolver(identity).
		WithClock(clock.Now).
		WithLogger(discardLogger())
	if tokens != nil {
		b = b.WithTokenGenerator(tokens)
	}
	if sink != nil {
		b = b.WithAuditSink(sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &memoryHarness{
		engine:   engine,
		backend:  backend,
		clock:    clock,
		identity: identity,
		sink:     sink,
	}
}

func (h *memoryHarness) user(id int64) *User {
	u := h.identity.get(id)
	return &u
}
