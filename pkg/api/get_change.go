package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// HandleGetChange handles GET requests for the newest audit record of
// one change identifier
func (h *Handler) HandleGetChange(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	changeID := vars["changeId"]

	uri := r.URL.Query().Get("connection_uri")
	if uri == "" {
		WriteJSONError(w, http.StatusBadRequest, "connection_uri is required")
		return
	}

	log.Printf("INFO: handleGetChange called for change '%s'", changeID)

	rec, err := h.audit.Latest(r.Context(), changeID, uri)
	if err != nil {
		if errors.Is(err, domain.ErrChangeNotFound) {
			WriteJSONError(w, http.StatusNotFound, "changeId not found")
			return
		}
		log.Printf("ERROR: Failed to get change '%s': %v", changeID, err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}
