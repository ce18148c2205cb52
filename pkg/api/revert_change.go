package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/mongochange/pkg/domain"
	"github.com/adfharrison1/mongochange/pkg/notify"
)

// RevertChangeRequest represents the request body for a revert
type RevertChangeRequest struct {
	ConnectionURI string `json:"connection_uri"`
	Database      string `json:"database,omitempty"`
}

// RevertChangeResponse represents the response for a revert
type RevertChangeResponse struct {
	Result       domain.RevertResult `json:"result"`
	Integrations []notify.Outcome    `json:"integrations,omitempty"`
}

// HandleRevertChange handles POST requests to undo a recorded change
func (h *Handler) HandleRevertChange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	changeID := vars["changeId"]

	log.Printf("INFO: handleRevertChange called for change '%s'", changeID)

	var req RevertChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("ERROR: Decoding body failed: %v", err)
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ConnectionURI == "" {
		WriteJSONError(w, http.StatusBadRequest, "connection_uri is required")
		return
	}

	result, err := h.engine.Revert(r.Context(), changeID, domain.RevertOptions{
		ConnectionURI: req.ConnectionURI,
		Database:      req.Database,
	})
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Printf("ERROR: Revert rejected: %v", cfgErr)
			WriteJSONError(w, http.StatusForbidden, cfgErr.Reason)
			return
		}
		log.Printf("ERROR: Revert failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outcomes := h.notifier.Dispatch(r.Context(), notify.Event{
		Action:    "revert",
		Timestamp: time.Now().UTC(),
		Actor:     r.Header.Get("X-Actor"),
		RequestID: r.Header.Get("X-Request-Id"),
		Result:    result,
	})

	response := RevertChangeResponse{
		Result:       result,
		Integrations: outcomes,
	}

	code := http.StatusOK
	if result.Status == domain.StatusFailed {
		code = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)

	log.Printf("INFO: Revert of change '%s' finished with status '%s'", changeID, result.Status)
}
