package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/psantana5/botkeeper/internal/observe"
	"github.com/psantana5/botkeeper/internal/supervisor"
	"github.com/psantana5/botkeeper/pkg/models"
)

// StatusResponse is the /status payload: the supervisor snapshot plus the
// latest passive child sample when one exists
type StatusResponse struct {
	supervisor.Snapshot
	Child  *observe.Sample `json:"child_sample,omitempty"`
	Uptime float64         `json:"daemon_uptime_seconds"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.HealthCheck(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Snapshot: s.sup.Snapshot(),
		Uptime:   time.Since(s.startTime).Seconds(),
	}
	if s.sampler != nil {
		if sample, ok := s.sampler.Latest(); ok {
			resp.Child = &sample
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	cycles, err := s.store.ListCycles(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if cycles == nil {
		cycles = []*models.Cycle{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	events := s.sup.Events()
	if limit < len(events) {
		events = events[len(events)-limit:]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleRestart kills the running child. The supervisor takes its normal
// stop, cooldown, relaunch path: a manual restart looks exactly like a
// crash in the logs and the history.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.sup.RestartChild(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "child killed, supervisor will relaunch after cooldown",
	})
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
