package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/servicedesk-core/internal/audit"
)

// recordAuthEvent counts the event and hands it to the audit recorder.
// It never blocks the request: a full queue drops the entry.
func (s *Server) recordAuthEvent(r *http.Request, action, email, userID string, details map[string]any) {
	s.metrics.authEvent(action)

	if s.recorder == nil {
		return
	}

	if requestID, ok := r.Context().Value(ctxKeyRequestID).(string); ok && requestID != "" {
		if details == nil {
			details = make(map[string]any, 1)
		}
		details["request_id"] = requestID
	}

	s.recorder.Record(audit.Entry{
		Action:     action,
		EntityType: audit.EntityCredential,
		EntityID:   email,
		UserID:     userID,
		Source:     "api",
		Details:    details,
	})
}

// handleListAuditLogs returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: register, login, login_failed, refresh, refresh_failed, logout
//   - entity_type, entity_id: filter by subject
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
