package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
)

// Engine is the session service and authorization decision point.
//
// Engine holds no per-session state; it is safe for concurrent use and all
// session state lives in the store.
type Engine struct {
	config       Config
	backend      session.Backend
	store        *session.Store
	resolver     IdentityResolver
	credentials  CredentialStore
	tokens       TokenGenerator
	limiter      *rate.Limiter
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	logger       *slog.Logger
	now          func() time.Time
}

// Config returns a copy of the configuration the Engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Close flushes the audit dispatcher. The store client is owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events dropped because the queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditSinkPanics reports audit events lost because the sink panicked.
func (e *Engine) AuditSinkPanics() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.SinkPanics()
}

// MetricsSnapshot copies the current counters. It is empty when metrics are off.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks store reachability when the backend supports it.
func (e *Engine) Ping(ctx context.Context) error {
	p, ok := e.backend.(interface {
		Ping(context.Context) (time.Duration, error)
	})
	if !ok {
		return nil
	}
	if _, err := p.Ping(ctx); err != nil {
		return e.storeErr(err)
	}
	return nil
}

// HashPassword hashes password with the Engine's argon2id parameters.
func (e *Engine) HashPassword(password string) (string, error) {
	if e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(password)
}

/*
====================================
SESSION LOOKUP
====================================
*/

// GetSession resolves token to a live session and slides its expiry.
//
// One store round trip reads the fixed fields, stamps the new access time and
// resets the TTL. The stamp applies only if the key exists, so an unknown token
// leaves the store untouched. Absence is (nil, nil): unknown or expired tokens,
// records with unparsable fields (logged, left in place) and records whose user
// no longer exists (deleted here). Only transport failures return an error.
//
// The read and refresh are not atomic against concurrent writers.
func (e *Engine) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		e.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}

	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricSessionLookupLatency, time.Since(start))
		}()
	}

	accessedAt := e.now().UTC()
	raw, found, err := e.store.Fetch(ctx, token, accessedAt, e.config.Session.Period)
	if err != nil {
		return nil, e.storeErr(err)
	}
	if !found {
		e.metricInc(MetricSessionLookupMiss)
		return nil, nil
	}

	rec, err := raw.Decode()
	if err != nil {
		e.metricInc(MetricSessionLookupCorrupt)
		e.logger.WarnContext(ctx, "corrupt session record treated as absent",
			"token", tokenHint(token),
			"error", err,
		)
		return nil, nil
	}

	user, err := e.resolver.ResolveByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("resolve session user %d: %w", rec.UserID, err)
	}
	if user == nil {
		e.dropStaleSession(ctx, token, rec.UserID)
		return nil, nil
	}

	e.metricInc(MetricSessionLookupHit)

	return &Session{
		Token:        token,
		UserID:       rec.UserID,
		CreatedAt:    rec.CreatedAt,
		LastAccessAt: accessedAt,
		ExpiresAt:    accessedAt.Add(e.config.Session.Period),
		User:         user,
	}, nil
}

// dropStaleSession deletes a session whose user is gone. A failed delete is
// logged only; the record will expire on its own.
func (e *Engine) dropStaleSession(ctx context.Context, token string, userID int64) {
	e.metricInc(MetricSessionLookupStale)

	if _, err := e.store.Delete(ctx, token); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.WarnContext(ctx, "stale session delete failed",
			"token", tokenHint(token),
			"user_id", userID,
			"error", err,
		)
		return
	}

	e.logger.InfoContext(ctx, "stale session removed",
		"token", tokenHint(token),
		"user_id", userID,
	)
	e.emitAudit(ctx, auditEventSessionStale, auditSubject{userID: userID}, nil)
}

/*
====================================
SESSION CREATION
====================================
*/

// CreateNewSession issues a fresh token for user and makes it the user's only session.
//
// Candidate tokens are checked for existence up to Session.MaxCreateAttempts times;
// if every candidate collides the call fails with [ErrSessionCreationExhausted]
// without writing anything. The check and the later write are not atomic.
//
// The identity side records the token through MarkLoggedIn before the store write.
// The write batch stores the three fixed fields, sets the TTL and deletes the
// token previously held in user.LastSessionKey. On success user.LastSessionKey is
// the new token.
//
// Two concurrent calls for the same user can each delete the LastSessionKey they
// read, leaving both new tokens live or deleting a newer one. No per-user
// sequencing is attempted.
func (e *Engine) CreateNewSession(ctx context.Context, user *User) (*Session, error) {
	if user == nil || user.ID <= 0 {
		return nil, ErrInvalidUser
	}

	token, err := e.pickToken(ctx)
	if err != nil {
		return nil, err
	}

	createdAt := e.now().UTC()
	previous := user.LastSessionKey

	if err := e.resolver.MarkLoggedIn(ctx, user, token); err != nil {
		e.emitAudit(ctx, auditEventSessionCreateFailed, subjectOf(user), ErrSessionCreationFailed)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	rec := session.Record{
		Token:        token,
		UserID:       user.ID,
		CreatedAt:    createdAt,
		LastAccessAt: createdAt,
	}
	if err := e.store.Create(ctx, rec, e.config.Session.Period, previous); err != nil {
		return nil, e.storeErr(err)
	}
	user.LastSessionKey = token

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, subjectOf(user), nil)
	if previous != "" && previous != token {
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventSessionInvalidated, subjectOf(user), nil, "reason", "replaced_by_login")
	}

	return &Session{
		Token:        token,
		UserID:       user.ID,
		CreatedAt:    createdAt,
		LastAccessAt: createdAt,
		ExpiresAt:    createdAt.Add(e.config.Session.Period),
		User:         user,
	}, nil
}

func (e *Engine) pickToken(ctx context.Context) (string, error) {
	attempts := e.config.Session.MaxCreateAttempts

	for i := 0; i < attempts; i++ {
		candidate, err := e.tokens()
		if err != nil {
			return "", fmt.Errorf("%w: generate token: %w", ErrSessionCreationFailed, err)
		}

		exists, err := e.store.Exists(ctx, candidate)
		if err != nil {
			return "", e.storeErr(err)
		}
		if !exists {
			return candidate, nil
		}
		e.metricInc(MetricSessionCreateCollision)
	}

	e.metricInc(MetricSessionCreateExhausted)
	e.logger.WarnContext(ctx, "cannot create a session after retries", "attempts", attempts)
	return "", ErrSessionCreationExhausted
}

/*
====================================
SESSION VALUES
====================================
*/

// SetSessionValue stores an ad hoc value on a live session. The TTL is not touched.
func (e *Engine) SetSessionValue(ctx context.Context, token, key, value string) error {
	if token == "" {
		return ErrSessionNotFound
	}

	existed, err := e.store.SetValue(ctx, token, key, value)
	if err != nil {
		return e.valueErr(err)
	}
	if !existed {
		return ErrSessionNotFound
	}
	return nil
}

// GetSessionValue reads an ad hoc value. found is false for an absent session or key.
func (e *Engine) GetSessionValue(ctx context.Context, token, key string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}

	v, found, err := e.store.GetValue(ctx, token, key)
	if err != nil {
		return "", false, e.valueErr(err)
	}
	return v, found, nil
}

// DeleteSessionValue removes an ad hoc value. Missing sessions and keys are not errors.
func (e *Engine) DeleteSessionValue(ctx context.Context, token, key string) error {
	if token == "" {
		return nil
	}

	if err := e.store.DeleteValue(ctx, token, key); err != nil {
		return e.valueErr(err)
	}
	return nil
}

/*
====================================
SESSION DELETION
====================================
*/

// DeleteSession removes the session record. An empty token is a no-op with no
// store call; an absent token is not an error.
func (e *Engine) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	deleted, err := e.store.Delete(ctx, token)
	if err != nil {
		return e.storeErr(err)
	}
	if deleted {
		e.metricInc(MetricSessionDeleted)
	}
	return nil
}

// SessionTTL returns the remaining lifetime of token's record without refreshing it.
func (e *Engine) SessionTTL(ctx context.Context, token string) (time.Duration, bool, error) {
	if token == "" {
		return 0, false, nil
	}

	ttl, ok, err := e.store.TTL(ctx, token)
	if err != nil {
		return 0, false, e.storeErr(err)
	}
	return ttl, ok, nil
}

func (e *Engine) storeErr(err error) error {
	e.metricInc(MetricStoreFailure)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (e *Engine) valueErr(err error) error {
	if errors.Is(err, session.ErrReservedField) {
		return fmt.Errorf("%w: %w", ErrReservedSessionField, err)
	}
	return e.storeErr(err)
}

// tokenHint is a log-safe prefix of a token.
func tokenHint(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}
