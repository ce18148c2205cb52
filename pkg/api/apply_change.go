package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/adfharrison1/mongochange/pkg/domain"
	"github.com/adfharrison1/mongochange/pkg/notify"
	"github.com/adfharrison1/mongochange/pkg/validation"
)

// ApplyChangeResponse represents the response for a single change
type ApplyChangeResponse struct {
	Result       domain.ChangeResult `json:"result"`
	Simulate     bool                `json:"simulate"`
	Integrations []notify.Outcome    `json:"integrations,omitempty"`
}

// HandleApplyChange handles POST requests to apply one schema change
func (h *Handler) HandleApplyChange(w http.ResponseWriter, r *http.Request) {
	simulate := r.URL.Query().Get("simulate") == "true"

	log.Printf("INFO: handleApplyChange called (simulate=%t)", simulate)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("ERROR: Reading body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := validation.ParseChange(body)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			log.Printf("ERROR: Validation failed: %v", verr)
			WriteValidationError(w, verr)
			return
		}
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.Apply(r.Context(), req, domain.ApplyOptions{Simulate: simulate})
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Printf("ERROR: Change rejected: %v", cfgErr)
			WriteJSONError(w, http.StatusForbidden, cfgErr.Reason)
			return
		}
		log.Printf("ERROR: Apply failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcomes := h.notifier.Dispatch(r.Context(), notify.Event{
		Action:    "apply",
		Timestamp: time.Now().UTC(),
		Simulate:  simulate,
		Actor:     r.Header.Get("X-Actor"),
		RequestID: r.Header.Get("X-Request-Id"),
		Request:   json.RawMessage(body),
		Result:    result,
	})

	response := ApplyChangeResponse{
		Result:       result,
		Simulate:     simulate,
		Integrations: outcomes,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(result.Status))
	json.NewEncoder(w).Encode(response)

	log.Printf("INFO: Change '%s' finished with status '%s'", result.ChangeID, result.Status)
}

// statusCodeFor maps a change outcome onto an HTTP status
func statusCodeFor(status domain.Status) int {
	switch status {
	case domain.StatusApplied:
		return http.StatusCreated
	case domain.StatusFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}
