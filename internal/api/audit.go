package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/audit"
)

const auditWriteTimeout = 5 * time.Second

// subjectFrom returns the authenticated subject, or "" on public routes.
func subjectFrom(r *http.Request) string {
	subject, _ := r.Context().Value(ctxKeySubject).(string)
	return subject
}

// recordAudit appends e to the audit trail. Failures are logged, never
// surfaced to the client.
func (s *Server) recordAudit(r *http.Request, e audit.Entry) {
	if s.audit == nil {
		return
	}
	if e.Source == "" {
		e.Source = audit.SourceAPI
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditWriteTimeout)
	defer cancel()

	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("failed to write audit entry", "action", e.Action, "error", err)
	}
}

// handleListAudit returns recent audit entries.
// Query parameters: action, since (RFC 3339), limit.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Action: q.Get("action")}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
