package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userDTO   `json:"user"`
}

type meResponse struct {
	User         userDTO   `json:"user"`
	CreatedAt    time.Time `json:"sessionCreatedAt"`
	LastAccessAt time.Time `json:"lastAccessAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		badRequest(w, "username and password required")
		return
	}

	sess, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	// The server-side TTL slides on every request, so the cookie lives for the
	// browser session and the store decides expiry.
	middleware.SetSessionCookie(w, sess.Token, time.Time{}, s.cookies)
	respondOK(w, loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      userFromSession(sess.User),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), s.gate.TokenFromRequest(r)); err != nil {
		respondErr(w, r, s.logger, err)
		return
	}
	middleware.ClearSessionCookie(w, s.cookies)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, middleware.CodeNotAuthorized, "not authorized")
		return
	}

	respondOK(w, meResponse{
		User:         userFromSession(id.User),
		CreatedAt:    id.Session.CreatedAt,
		LastAccessAt: id.Session.LastAccessAt,
		ExpiresAt:    id.Session.ExpiresAt,
	})
}
