package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/adfharrison1/mongochange/pkg/domain"
	"github.com/adfharrison1/mongochange/pkg/notify"
	"github.com/adfharrison1/mongochange/pkg/validation"
)

// MaxBatchSize caps how many changes one batch may carry
const MaxBatchSize = 100

// ApplyBatchRequest represents the request body for batch submissions
type ApplyBatchRequest struct {
	Changes     []validation.ChangePayload `json:"changes"`
	StopOnError *bool                      `json:"stop_on_error,omitempty"`
}

// ApplyBatchResponse represents the response for batch submissions
type ApplyBatchResponse struct {
	Batch        domain.BatchResult `json:"batch"`
	Simulate     bool               `json:"simulate"`
	Integrations []notify.Outcome   `json:"integrations,omitempty"`
}

// HandleApplyBatch handles POST requests to apply an ordered list of changes
func (h *Handler) HandleApplyBatch(w http.ResponseWriter, r *http.Request) {
	simulate := r.URL.Query().Get("simulate") == "true"

	var req ApplyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	log.Printf("INFO: handleApplyBatch called with %d changes (simulate=%t)", len(req.Changes), simulate)

	if len(req.Changes) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "no changes provided")
		return
	}
	if len(req.Changes) > MaxBatchSize {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("maximum %d changes allowed per batch", MaxBatchSize))
		return
	}

	// every change must validate before any execution starts
	verr := &domain.ValidationError{}
	requests := make([]domain.ChangeRequest, 0, len(req.Changes))
	for i, payload := range req.Changes {
		change, err := validation.ValidateChange(payload)
		if err != nil {
			var fieldErr *domain.ValidationError
			if errors.As(err, &fieldErr) {
				for _, f := range fieldErr.Fields {
					verr.Add(fmt.Sprintf("changes[%d].%s", i, f.Field), f.Reason)
				}
			} else {
				verr.Add(fmt.Sprintf("changes[%d]", i), err.Error())
			}
			continue
		}
		requests = append(requests, change)
	}
	if verr.HasErrors() {
		log.Printf("ERROR: Batch validation failed: %v", verr)
		WriteValidationError(w, verr)
		return
	}

	stopOnError := true
	if req.StopOnError != nil {
		stopOnError = *req.StopOnError
	}

	batch := h.engine.ApplyBatch(r.Context(), requests, domain.BatchOptions{
		StopOnError: stopOnError,
		Simulate:    simulate,
	})

	outcomes := h.notifier.Dispatch(r.Context(), notify.Event{
		Action:    "batch",
		Timestamp: time.Now().UTC(),
		Simulate:  simulate,
		Actor:     r.Header.Get("X-Actor"),
		RequestID: r.Header.Get("X-Request-Id"),
		Result:    batch,
	})

	response := ApplyBatchResponse{
		Batch:        batch,
		Simulate:     simulate,
		Integrations: outcomes,
	}

	code := http.StatusOK
	if batch.Status == domain.BatchRolledBack {
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)

	log.Printf("INFO: Batch finished with status '%s' (%d results)", batch.Status, len(batch.Results))
}
