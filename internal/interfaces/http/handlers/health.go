package handlers

import (
	"net/http"
	"time"

	httpContracts "github.com/sawpanic/rankforum/internal/http"
)

// Health reports liveness plus engine population and backend state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	backends := map[string]string{}

	status := "healthy"
	if h.db != nil && h.db.IsEnabled() {
		if err := h.db.Ping(r.Context()); err != nil {
			backends["postgres"] = "down"
			status = "degraded"
		} else {
			backends["postgres"] = "healthy"
		}
	} else {
		backends["postgres"] = "disabled"
	}
	if h.scores != nil {
		backends["score_cache"] = h.scores.BreakerState()
	}

	accounts, fields, targets, votes, banned := h.engine.Stats()

	h.writeJSON(w, http.StatusOK, httpContracts.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Backends:  backends,
		Accounts:  accounts,
		Fields:    fields,
		Targets:   targets,
		Votes:     votes,
		Banned:    banned,
	})
}
