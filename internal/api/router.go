package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/servicedesk-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.instrument)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/public", s.handlePublic)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)

		r.With(s.authGate).Post("/logout", s.handleLogout)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authGate)

		r.Get("/protected", s.handleProtected)

		r.With(s.requirePermission(auth.PermProfileRead)).Get("/users/me", s.handleMe)
		r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
	})

	return r
}

// handleHealth reports status, version and each dependency's health.
// Any failing dependency turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	healthy := true

	for name, hc := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := hc.HealthCheck(ctx)
		cancel()

		if err != nil {
			healthy = false
			checks[name] = "unhealthy"
			s.logger.Warn("health check failed", "dependency", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
