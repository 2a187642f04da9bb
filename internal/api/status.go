package api

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

type mqttStatusResponse struct {
	State         string   `json:"state"`
	Disabled      bool     `json:"disabled"`
	Broker        string   `json:"broker,omitempty"`
	ClientID      string   `json:"client_id,omitempty"`
	StatusTopic   string   `json:"status_topic,omitempty"`
	Generation    uint64   `json:"generation"`
	Subscriptions []string `json:"subscriptions"`
}

type scheduleStatusResponse struct {
	Enabled    bool   `json:"enabled"`
	Topic      string `json:"topic,omitempty"`
	Subscribed bool   `json:"subscribed"`
}

type runResponse struct {
	ID         int64     `json:"id"`
	Topic      string    `json:"topic"`
	Durations  []int     `json:"durations"`
	ReceivedAt time.Time `json:"received_at"`
}

// handleMQTTStatus reports the broker session.
func (s *Server) handleMQTTStatus(w http.ResponseWriter, _ *http.Request) {
	resp := mqttStatusResponse{
		State:         s.session.State().String(),
		Disabled:      s.session.Disabled(),
		Generation:    s.session.Generation(),
		Subscriptions: s.session.Subscriptions(),
	}
	if cfg := s.session.Settings(); cfg.Host != "" {
		resp.Broker = cfg.Address()
		resp.ClientID = cfg.ClientID
		resp.StatusTopic = cfg.StatusTopic
	}
	if resp.Subscriptions == nil {
		resp.Subscriptions = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleScheduleStatus reports the schedule consumer.
func (s *Server) handleScheduleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.schedule == nil {
		writeJSON(w, http.StatusOK, scheduleStatusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, scheduleStatusResponse{
		Enabled:    true,
		Topic:      s.schedule.Topic(),
		Subscribed: s.schedule.Subscribed(),
	})
}

// handleListRuns returns recent run-once programs, newest first.
// Query: ?limit=N (1..500, default 20).
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "run history not available")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list run-once history", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}

	runs := make([]runResponse, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, runResponse{
			ID:         e.ID,
			Topic:      e.Topic,
			Durations:  e.Durations,
			ReceivedAt: e.ReceivedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
