package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/identity"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/password"
	"github.com/go-chi/chi/v5"
)

type userDTO struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Name      string     `json:"name,omitempty"`
	Admin     bool       `json:"admin"`
	Active    bool       `json:"active"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func userFromAccount(a *identity.Account) userDTO {
	created := a.CreatedAt
	return userDTO{
		ID:        a.ID,
		Username:  a.Username,
		Name:      a.Name,
		Admin:     a.Admin,
		Active:    a.Active,
		CreatedAt: &created,
	}
}

func userFromSession(u *goSession.User) userDTO {
	if u == nil {
		return userDTO{}
	}
	return userDTO{ID: u.ID, Username: u.Username, Admin: u.Admin, Active: u.Active}
}

type createUserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

type updateUserRequest struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	Password string  `json:"password"`
	Admin    bool    `json:"admin"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.users.List(r.Context())
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	resp := ListResponse[userDTO]{Items: make([]userDTO, 0, len(accounts))}
	for i := range accounts {
		resp.Items = append(resp.Items, userFromAccount(&accounts[i]))
	}
	respondOK(w, resp)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	a, err := s.users.Get(r.Context(), id)
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}
	respondOK(w, userFromAccount(a))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		badRequest(w, "username required")
		return
	}

	hash, ok := s.hashPassword(w, r, req.Password)
	if !ok {
		return
	}

	a, err := s.users.Create(r.Context(), identity.NewAccount{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Admin:        req.Admin,
	})
	if errors.Is(err, identity.ErrUsernameTaken) {
		middleware.WriteError(w, http.StatusConflict, middleware.CodeUsernameTaken,
			"username '"+req.Username+"' is taken by another user")
		return
	}
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	s.logger.InfoContext(r.Context(), "user created", "user_id", a.ID, "admin", a.Admin)
	respondOK(w, userFromAccount(a))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.ID <= 0 {
		badRequest(w, "id required")
		return
	}

	update := identity.AccountUpdate{Name: req.Name, Admin: req.Admin}
	if req.Password != "" {
		hash, ok := s.hashPassword(w, r, req.Password)
		if !ok {
			return
		}
		update.PasswordHash = hash
	}

	a, err := s.users.Update(r.Context(), req.ID, update)
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}
	respondOK(w, userFromAccount(a))
}

// handleDeleteUser deactivates the account and drops its current session.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	a, err := s.users.Deactivate(r.Context(), id)
	if err != nil {
		respondErr(w, r, s.logger, err)
		return
	}

	if a.LastSessionKey != "" {
		if err := s.engine.DeleteSession(r.Context(), a.LastSessionKey); err != nil {
			respondErr(w, r, s.logger, err)
			return
		}
	}

	s.logger.InfoContext(r.Context(), "user deactivated", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) hashPassword(w http.ResponseWriter, r *http.Request, pw string) (string, bool) {
	hash, err := s.engine.HashPassword(pw)
	switch {
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
		badRequest(w, err.Error())
		return "", false
	case err != nil:
		respondErr(w, r, s.logger, err)
		return "", false
	}
	return hash, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}
