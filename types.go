package goSession

//go:generate mockgen -destination=internal/mocks/identity.go -package=mocks github.com/MrEthical07/goSession IdentityResolver,CredentialStore

import (
	"context"
	"time"
)

// User is the identity-side aggregate a session resolves to.
//
// LastSessionKey is the token of the user's current session, if any. CreateNewSession
// deletes that token when it issues a new one.
type User struct {
	ID             int64
	Username       string
	Admin          bool
	Active         bool
	LastSessionKey string
	PasswordHash   string
}

// Session is a resolved session record.
type Session struct {
	Token        string
	UserID       int64
	CreatedAt    time.Time
	LastAccessAt time.Time
	// ExpiresAt is LastAccessAt plus the session period. The store enforces it;
	// the value here is informational.
	ExpiresAt time.Time
	User      *User
}

// Policy is the security requirement of one endpoint. A nil *Policy means the
// endpoint is unsecured and no check runs.
type Policy struct {
	AllowAnonymous         bool
	RequireAdminPermission bool
}

// Identity is the caller attached to a request by the gate.
type Identity struct {
	Session *Session
	User    *User
}

// IdentityResolver is the identity-side collaborator of the Engine.
//
// ResolveByID must return an error wrapping [ErrUserNotFound] when the user does not
// exist. MarkLoggedIn persists token as the user's LastSessionKey.
type IdentityResolver interface {
	ResolveByID(ctx context.Context, id int64) (*User, error)
	MarkLoggedIn(ctx context.Context, user *User, token string) error
}

// CredentialStore looks users up by login name. It is only required by [Engine.Login].
type CredentialStore interface {
	ResolveByUsername(ctx context.Context, username string) (*User, error)
}

// PasswordHashUpdater is implemented by credential stores that accept re-hashed
// passwords after a successful login.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
}

// TokenGenerator returns one candidate session token.
type TokenGenerator func() (string, error)
