package api

import (
	"net/http"
	"strings"

	"github.com/maksimkurb/netstate/src/internal/engine"
)

// CheckHealth reports whether the engine can read the system.
// GET /health
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Healthy: true,
		Checks:  make(map[string]CheckResult),
	}

	kinds := make([]string, 0, len(h.engine.Kinds()))
	for _, k := range h.engine.Kinds() {
		kinds = append(kinds, string(k))
	}

	if _, err := h.engine.Retrieve(r.Context(), engine.Flags{KernelOnly: true}); err != nil {
		response.Healthy = false
		response.Checks["kernel"] = CheckResult{
			Passed:  false,
			Message: "Failed to read " + strings.Join(kinds, ", ") + ": " + err.Error(),
		}
	} else {
		response.Checks["kernel"] = CheckResult{
			Passed:  true,
			Message: "Read " + strings.Join(kinds, ", "),
		}
	}

	if h.engine.DaemonAvailable() {
		response.Checks["daemon"] = CheckResult{Passed: true, Message: "NetworkManager is connected"}
	} else {
		response.Checks["daemon"] = CheckResult{Passed: true, Message: "NetworkManager integration disabled"}
	}

	status := http.StatusOK
	if !response.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}
