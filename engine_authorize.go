package goSession

import (
	"context"
	"fmt"
)

// Authorize applies policy to the caller presenting token.
//
//   - nil policy: unsecured endpoint, (nil, nil) without touching the store.
//   - no token or no live session: (nil, nil) when AllowAnonymous, else [ErrNotAuthorized].
//   - RequireAdminPermission and the user is not an admin: [ErrNotAuthorized]
//     wrapping [ErrAdminRequired].
//   - otherwise the resolved [Identity].
//
// When the store cannot be reached, policies that allow anonymous access let the
// caller through without an identity; all others get an error wrapping
// [ErrStoreUnavailable].
func (e *Engine) Authorize(ctx context.Context, policy *Policy, token string) (*Identity, error) {
	if policy == nil {
		return nil, nil
	}

	var sess *Session
	if token != "" {
		var err error
		sess, err = e.GetSession(ctx, token)
		if err != nil {
			if !policy.AllowAnonymous {
				return nil, err
			}
			e.logger.WarnContext(ctx, "session lookup failed, continuing anonymously", "error", err)
			sess = nil
		}
	}

	if sess == nil {
		if policy.AllowAnonymous {
			e.metricInc(MetricAuthorizeAnonymous)
			return nil, nil
		}
		return nil, e.reject(ctx, 0, ErrNotAuthorized)
	}

	if policy.RequireAdminPermission && (sess.User == nil || !sess.User.Admin) {
		return nil, e.reject(ctx, sess.UserID, fmt.Errorf("%w: %w", ErrNotAuthorized, ErrAdminRequired))
	}

	e.metricInc(MetricAuthorizeAllowed)
	return &Identity{Session: sess, User: sess.User}, nil
}

func (e *Engine) reject(ctx context.Context, userID int64, err error) error {
	e.metricInc(MetricAuthorizeRejected)
	e.logger.DebugContext(ctx, "request rejected", "user_id", userID, "reason", err)
	e.emitAudit(ctx, auditEventAuthorizeRejected, auditSubject{userID: userID}, err)
	return err
}
