package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/servicedesk-core/internal/auth"
)

type meResponse struct {
	*auth.PublicCredential
	Permissions []auth.Permission `json:"permissions"`
}

// handleMe returns the caller's profile and effective permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil || p.Email == "" {
		writeUnauthorized(w)
		return
	}

	profile, err := s.sessions.Profile(r.Context(), p.Email)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		s.logger.Error("profile lookup failed", "error", err)
		writeInternalError(w)
		return
	}

	perms := auth.PermissionsForRole(profile.Role)
	if perms == nil {
		perms = []auth.Permission{}
	}

	writeJSON(w, http.StatusOK, meResponse{
		PublicCredential: profile,
		Permissions:      perms,
	})
}

// handleProtected is a sample route behind the auth gate.
func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "You have accessed a protected route",
		"email":   p.Email,
	})
}

// handlePublic is a sample route open to everyone.
func (s *Server) handlePublic(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "This is a public route",
	})
}
