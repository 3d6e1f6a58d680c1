package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/internal/rate"
)

// Login verifies username and password and issues a new session for the user,
// replacing any previous one.
//
// Unknown usernames and wrong passwords both return [ErrInvalidCredentials]; an
// unknown username still pays for one argon2 verification. Failed attempts count
// against the login throttle; once it trips, [ErrLoginRateLimited] is returned
// before credentials are checked. Deactivated users get [ErrUserInactive].
func (e *Engine) Login(ctx context.Context, username, password string) (*Session, error) {
	if e.credentials == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.Check(ctx, username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, auditSubject{username: username}, ErrLoginRateLimited)
				return nil, ErrLoginRateLimited
			}
			return nil, e.storeErr(err)
		}
	}

	user, err := e.credentials.ResolveByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("resolve user %q: %w", username, err)
	}
	if user == nil {
		e.passwordHash.VerifyDummy(password)
		return nil, e.loginFailed(ctx, username, ip, 0, ErrInvalidCredentials)
	}

	ok, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil {
		e.logger.WarnContext(ctx, "stored password hash rejected",
			"user_id", user.ID,
			"error", err,
		)
	}
	if !ok {
		return nil, e.loginFailed(ctx, username, ip, user.ID, ErrInvalidCredentials)
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, subjectOf(user), ErrUserInactive)
		return nil, ErrUserInactive
	}

	if e.limiter != nil {
		if err := e.limiter.Reset(ctx, username); err != nil {
			e.logger.WarnContext(ctx, "login throttle reset failed", "error", err)
		}
	}

	e.upgradePasswordHash(ctx, user, password)

	sess, err := e.CreateNewSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, subjectOf(user), err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, subjectOf(user), nil)

	return sess, nil
}

func (e *Engine) loginFailed(ctx context.Context, username, ip string, userID int64, cause error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, auditSubject{userID: userID, username: username}, cause)

	if e.limiter == nil {
		return cause
	}
	if err := e.limiter.RecordFailure(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.WarnContext(ctx, "login throttle unavailable", "error", err)
	}
	return cause
}

// upgradePasswordHash re-hashes with current parameters when the stored hash is
// weaker. Failures are logged; the login itself already succeeded.
func (e *Engine) upgradePasswordHash(ctx context.Context, user *User, password string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	updater, ok := e.credentials.(PasswordHashUpdater)
	if !ok {
		return
	}

	needs, err := e.passwordHash.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	hash, err := e.passwordHash.Hash(password)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := updater.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.WarnContext(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}

// Logout deletes the session behind token. Empty and unknown tokens are not errors.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := e.DeleteSession(ctx, token); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, auditSubject{}, nil)
	return nil
}
