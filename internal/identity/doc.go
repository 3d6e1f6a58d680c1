// Package identity is the back-office user repository.
//
// Accounts live in a SQLite database (modernc.org/sqlite, no cgo) whose schema is
// managed by embedded goose migrations. [Store] is the identity side of the session
// engine: it resolves users by id and username, records the current session token
// on login, and accepts re-hashed passwords.
package identity
