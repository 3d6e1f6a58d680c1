// Package logging builds the process-wide slog logger for the back-office server.
package logging
