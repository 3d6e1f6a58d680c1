package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status       string `json:"status"`
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	SessionStore string `json:"session_store"`
	UserDatabase string `json:"user_database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "healthy",
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		SessionStore: "ok",
		UserDatabase: "ok",
	}

	status := http.StatusOK
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health: session store", "err", err)
		resp.SessionStore = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := s.users.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health: user database", "err", err)
		resp.UserDatabase = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		resp.Status = "degraded"
	}

	respondJSON(w, status, resp)
}
