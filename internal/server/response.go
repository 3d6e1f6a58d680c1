package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goSession/middleware"
)

const maxBodyBytes = 1 << 20

// ListResponse wraps collection results.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, data)
}

// respondErr maps err onto a status and error code. Server-side failures are
// logged; client errors are not.
func respondErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := middleware.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"err", err,
		)
		middleware.WriteError(w, status, code, http.StatusText(status))
		return
	}
	middleware.WriteError(w, status, code, err.Error())
}

func badRequest(w http.ResponseWriter, message string) {
	middleware.WriteError(w, http.StatusBadRequest, middleware.CodeInvalidRequest, message)
}

// decodeJSON reads a single JSON object from the request body into dst,
// rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
