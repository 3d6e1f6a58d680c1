package goSession

import "errors"

var (
	// ErrStoreUnavailable wraps transport failures from the session store.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionCreationExhausted is returned when every candidate token collided.
	ErrSessionCreationExhausted = errors.New("session creation exhausted token attempts")
	// ErrSessionCreationFailed is returned when the identity side refused the new token.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionNotFound is returned by value writes against an absent session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReservedSessionField is returned when a value slot targets a fixed session field.
	ErrReservedSessionField = errors.New("reserved session field")
	// ErrNotAuthorized is the gate rejection.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrAdminRequired is wrapped by ErrNotAuthorized when the admin flag is missing.
	ErrAdminRequired = errors.New("admin permission required")
	// ErrUserNotFound is the Identity Resolver's not-found signal.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers unknown usernames and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive is returned by Login for deactivated users.
	ErrUserInactive = errors.New("user inactive")
	// ErrLoginRateLimited is returned once the login throttle trips.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrInvalidUser is returned when CreateNewSession gets a nil or id-less user.
	ErrInvalidUser = errors.New("invalid user")
	// ErrEngineNotReady is returned when a dependency needed by the call was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
)
