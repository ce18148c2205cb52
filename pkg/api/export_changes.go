package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/adfharrison1/mongochange/pkg/audit"
)

// ArchiveExporter snapshots the audit trail for one connection URI into
// the compressed archive format
type ArchiveExporter interface {
	ExportBuffer(ctx context.Context, connectionURI string) ([]byte, error)
}

// HandleExportChanges handles GET requests to download the audit trail
// as a compressed archive, reverted records included
func (h *Handler) HandleExportChanges(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		WriteJSONError(w, http.StatusNotImplemented, "archive export is not configured")
		return
	}

	uri := r.URL.Query().Get("connection_uri")
	if uri == "" {
		WriteJSONError(w, http.StatusBadRequest, "connection_uri is required")
		return
	}

	log.Printf("INFO: handleExportChanges called")

	data, err := h.exporter.ExportBuffer(r.Context(), uri)
	if err != nil {
		log.Printf("ERROR: Failed to export changes: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := fmt.Sprintf("changes_%s%s", time.Now().UTC().Format("20060102T150405"), audit.FileExtension)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)

	log.Printf("INFO: Exported audit archive (%d bytes)", len(data))
}
