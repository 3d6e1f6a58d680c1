// Package internal contains helpers private to goSession, chiefly the session
// token generator.
//
// # Sub-packages
//
//   - cli: cobra commands behind cmd/backoffice
//   - config: server configuration (defaults, YAML, environment)
//   - identity: SQLite user repository backing the identity resolver
//   - logging: slog logger factory with optional file rotation
//   - mocks: generated mocks for root interfaces
//   - rate: Redis-backed login throttle
//   - server: chi HTTP server for the back office
//
// Nothing here is part of the public goSession API.
package internal
