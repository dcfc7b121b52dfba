package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]string      `json:"checks"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthCheck reports the state of every registered dependency. Any failing
// check turns the answer into a 503.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(names)),
		Timestamp: time.Now().UTC(),
	}

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
		err := h.checks[name].Health(ctx)
		cancel()

		if err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = err.Error()
			continue
		}
		response.Checks[name] = "ok"
	}

	if len(h.stats) > 0 {
		response.Stats = make(map[string]interface{}, len(h.stats))
		for name, stat := range h.stats {
			response.Stats[name] = stat()
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.sendJSON(w, status, response)
}
