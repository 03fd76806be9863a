package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/servicedesk-core/internal/audit"
	"github.com/nerrad567/servicedesk-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerResponse struct {
	Message string                 `json:"message"`
	User    *auth.PublicCredential `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// decodeJSON reads the request body into v, writing a 400 (or 413 for an
// oversized body) and reporting false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleRegister creates a credential and returns its public projection.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := s.sessions.Register(r.Context(), in)
	if err != nil {
		if !registerError(w, err) {
			s.logger.Error("register failed", "error", err)
		}
		return
	}

	s.recordAuthEvent(r, audit.ActionRegister, user.Email, user.ID, map[string]any{"role": string(user.Role)})

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    user,
	})
}

// handleLogin verifies credentials and returns an access/refresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordAuthEvent(r, audit.ActionLoginFailed, req.Email, "", nil)
		}
		if !loginError(w, err) {
			s.logger.Error("login failed", "error", err)
		}
		return
	}

	s.recordAuthEvent(r, audit.ActionLogin, req.Email, "", nil)
	writeJSON(w, http.StatusOK, pair)
}

// handleRefresh exchanges a refresh token for a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			s.recordAuthEvent(r, audit.ActionRefreshFailed, "", "", nil)
		}
		if !refreshError(w, err) {
			s.logger.Error("refresh failed", "error", err)
		}
		return
	}

	s.recordAuthEvent(r, audit.ActionRefresh, "", "", nil)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

// handleLogout clears the caller's stored refresh token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil || p.Email == "" {
		writeUnauthorized(w)
		return
	}

	if err := s.sessions.Logout(r.Context(), p.Email); err != nil {
		if errors.Is(err, auth.ErrCredentialNotFound) {
			writeUnauthorized(w)
			return
		}
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w)
		return
	}

	s.recordAuthEvent(r, audit.ActionLogout, p.Email, "", nil)
	w.WriteHeader(http.StatusNoContent)
}
