package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// ListChangesResponse represents a page of audit records plus the total
// matching count
type ListChangesResponse struct {
	Total int64                `json:"total"`
	Items []domain.AuditRecord `json:"items"`
}

// HandleListChanges handles GET requests to query the audit trail
func (h *Handler) HandleListChanges(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	uri := query.Get("connection_uri")
	if uri == "" {
		WriteJSONError(w, http.StatusBadRequest, "connection_uri is required")
		return
	}

	filter, err := parseListFilter(query.Get("status"), query.Get("since"), query.Get("limit"), query.Get("skip"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("INFO: handleListChanges called (statuses=%v limit=%d skip=%d)", filter.Statuses, filter.Limit, filter.Skip)

	total, items, err := h.audit.List(r.Context(), uri, filter)
	if err != nil {
		log.Printf("ERROR: Failed to list changes: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []domain.AuditRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListChangesResponse{Total: total, Items: items})

	log.Printf("INFO: Listed %d of %d matching changes", len(items), total)
}

// parseListFilter converts raw query parameters into a typed filter. An
// explicit status list (comma separated) overrides the default filter,
// which excludes reverted records, and may include reverted.
func parseListFilter(status, since, limit, skip string) (domain.ListFilter, error) {
	var f domain.ListFilter

	if status != "" {
		for _, part := range strings.Split(status, ",") {
			part = strings.TrimSpace(part)
			switch s := domain.Status(part); s {
			case domain.StatusApplied, domain.StatusSkipped, domain.StatusFailed, domain.StatusReverted:
				f.Statuses = append(f.Statuses, s)
			default:
				return f, &parseError{"status", "unknown status '" + part + "'"}
			}
		}
	}

	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, &parseError{"since", "must be an RFC3339 timestamp"}
		}
		f.Since = &t
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return f, &parseError{"limit", "must be a positive integer"}
		}
		if n > domain.MaxListLimit {
			n = domain.MaxListLimit
		}
		f.Limit = n
	}

	if skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return f, &parseError{"skip", "must be a non-negative integer"}
		}
		f.Skip = n
	}

	return f, nil
}

type parseError struct {
	param  string
	reason string
}

func (e *parseError) Error() string {
	return "invalid " + e.param + ": " + e.reason
}
