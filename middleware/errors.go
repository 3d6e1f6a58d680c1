package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// ErrorCode is the machine-readable code in every error body.
type ErrorCode string

const (
	CodeNotAuthorized        ErrorCode = "NOT_AUTHORIZED"
	CodeAPINotFound          ErrorCode = "API_NOT_FOUND"
	CodeInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	CodeUserNotFound         ErrorCode = "USER_NOT_FOUND"
	CodeUsernameTaken        ErrorCode = "USERNAME_TAKEN_BY_ANOTHER_USER"
	CodeUnexpectedError      ErrorCode = "UNEXPECTED_ERROR"
	CodeTooManyLoginAttempts ErrorCode = "TOO_MANY_LOGIN_ATTEMPTS"
)

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

// WriteError writes a JSON error body with status.
func WriteError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Code: code, Message: message})
}

// StatusFor maps Engine errors onto an HTTP status and error code.
func StatusFor(err error) (int, ErrorCode) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, goSession.ErrNotAuthorized):
		return http.StatusUnauthorized, CodeNotAuthorized
	case errors.Is(err, goSession.ErrInvalidCredentials),
		errors.Is(err, goSession.ErrUserInactive):
		return http.StatusUnauthorized, CodeInvalidCredentials
	case errors.Is(err, goSession.ErrLoginRateLimited):
		return http.StatusTooManyRequests, CodeTooManyLoginAttempts
	case errors.Is(err, goSession.ErrUserNotFound):
		return http.StatusNotFound, CodeUserNotFound
	case errors.Is(err, goSession.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeUnexpectedError
	default:
		return http.StatusInternalServerError, CodeUnexpectedError
	}
}
