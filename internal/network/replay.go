// Package network - replay.go
// JSON export of a run's event history, so viewers can replay how the
// outbreak unfolded tick by tick.
package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/epidemica/contagio-server/internal/events"
	"github.com/epidemica/contagio-server/internal/platform/logger"
)

// ReplayHandler serves the run-history replay API.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler over the live event log.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		eventLog: el,
		logger:   log,
	}
}

// ReplayResponse is the API response for a replay request.
type ReplayResponse struct {
	TotalEvents int               `json:"total_events"`
	FilteredBy  string            `json:"filtered_by,omitempty"`
	GeneratedAt string            `json:"generated_at"`
	Events      []events.SimEvent `json:"events"`
}

// HandleReplay returns the event history, optionally filtered.
// GET /api/replay?agent=N&tick=N&type=AGENT_EXPOSED
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := rh.eventLog.Replay()
	filtered := all
	filteredBy := ""

	if v := r.URL.Query().Get("agent"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			rh.jsonError(w, "invalid agent id", http.StatusBadRequest)
			return
		}
		filtered = rh.eventLog.GetByAgent(id)
		filteredBy = "agent=" + v
	} else if v := r.URL.Query().Get("tick"); v != "" {
		tick, err := strconv.Atoi(v)
		if err != nil {
			rh.jsonError(w, "invalid tick", http.StatusBadRequest)
			return
		}
		filtered = rh.eventLog.GetByTick(tick)
		filteredBy = "tick=" + v
	}

	if v := r.URL.Query().Get("type"); v != "" {
		var byType []events.SimEvent
		for _, e := range filtered {
			if string(e.Type) == v {
				byType = append(byType, e)
			}
		}
		filtered = byType
		if filteredBy != "" {
			filteredBy += ","
		}
		filteredBy += "type=" + v
	}

	resp := ReplayResponse{
		TotalEvents: len(all),
		FilteredBy:  filteredBy,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rh.logger.Error("Failed to encode replay response: %v", err)
	}
}

func (rh *ReplayHandler) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
