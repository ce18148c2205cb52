package api

import (
	"encoding/json"
	"net/http"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
	Audit  string `json:"audit"`
}

// HandleHealth handles GET requests to the health check endpoint. It
// issues a minimal audit-store query so load balancers see the service
// as degraded when the audit backend is down, since every non-simulated
// change depends on it.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "healthy",
		Audit:  "reachable",
	}
	code := http.StatusOK

	if _, _, err := h.audit.List(r.Context(), "", domain.ListFilter{Limit: 1}); err != nil {
		response.Status = "degraded"
		response.Audit = "unreachable: " + err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
