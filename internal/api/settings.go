package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/nerrad567/sip-mqtt/internal/audit"
	"github.com/nerrad567/sip-mqtt/internal/settings"
)

// handleGetSettings returns the settings document.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Document())
}

// handlePutSettings validates and saves a partial settings document.
// Keys not present in the body keep their stored values.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeBadRequest(w, "body must be a JSON object of string values")
		return
	}
	if len(values) == 0 {
		writeBadRequest(w, "no settings submitted")
		return
	}

	err := s.settings.Save(r.Context(), values)

	var verr *settings.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		writeValidationError(w, verr.Fields)
		return
	case errors.Is(err, settings.ErrNotLoaded):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "settings not loaded yet")
		return
	default:
		s.logger.Error("failed to save settings", "error", err)
		writeInternalError(w, "failed to save settings")
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.logger.Info("settings saved via API", "keys", keys, "subject", subjectFrom(r))
	s.recordAudit(r, audit.Entry{
		Action:  audit.ActionSettingsUpdate,
		Subject: subjectFrom(r),
		Details: map[string]any{"keys": keys},
	})

	writeJSON(w, http.StatusOK, s.settings.Document())
}
