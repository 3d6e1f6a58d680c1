package goSession

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginRateLimited    = "login_rate_limited"
	auditEventLogout              = "logout"
	auditEventSessionCreated      = "session_created"
	auditEventSessionInvalidated  = "session_invalidated"
	auditEventSessionStale        = "session_stale_removed"
	auditEventSessionCreateFailed = "session_create_failed"
	auditEventAuthorizeRejected   = "authorize_rejected"
)

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrNotAuthorized         AuditErrorCode = "not_authorized"
	auditErrAdminRequired         AuditErrorCode = "admin_required"
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrUserInactive          AuditErrorCode = "user_inactive"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrSessionNotFound       AuditErrorCode = "session_not_found"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrSessionExhausted      AuditErrorCode = "session_creation_exhausted"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

// auditErrorCodes is matched top to bottom. ErrAdminRequired travels wrapped
// together with ErrNotAuthorized, so it must come first.
var auditErrorCodes = []struct {
	err  error
	code AuditErrorCode
}{
	{ErrAdminRequired, auditErrAdminRequired},
	{ErrNotAuthorized, auditErrNotAuthorized},
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrUserInactive, auditErrUserInactive},
	{ErrLoginRateLimited, auditErrRateLimited},
	{ErrSessionNotFound, auditErrSessionNotFound},
	{ErrUserNotFound, auditErrUserNotFound},
	{ErrSessionCreationExhausted, auditErrSessionExhausted},
	{ErrSessionCreationFailed, auditErrSessionCreationFailed},
	{ErrStoreUnavailable, auditErrUnavailable},
}

// auditSubject is who an event is about. Either field may be empty.
type auditSubject struct {
	userID   int64
	username string
}

func subjectOf(u *User) auditSubject {
	if u == nil {
		return auditSubject{}
	}
	return auditSubject{userID: u.ID, username: u.Username}
}

// emitAudit queues one event. A nil cause marks the event successful. meta is
// read as key/value pairs; a trailing odd key is ignored.
func (e *Engine) emitAudit(ctx context.Context, eventType string, who auditSubject, cause error, meta ...string) {
	if e == nil || e.audit == nil {
		return
	}

	ev := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    who.userID,
		Username:  who.username,
		IP:        clientIPFromContext(ctx),
		Success:   cause == nil,
		Error:     string(auditErrorCode(cause)),
	}
	if len(meta) >= 2 {
		ev.Metadata = make(map[string]string, len(meta)/2)
		for i := 0; i+1 < len(meta); i += 2 {
			ev.Metadata[meta[i]] = meta[i+1]
		}
	}

	e.audit.Emit(ctx, ev)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, m := range auditErrorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return auditErrInternal
}
