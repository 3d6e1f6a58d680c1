// Package cli implements the backoffice command: serve, migrate and user
// administration.
package cli
