package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Change operations
	router.HandleFunc("/changes", h.HandleApplyChange).Methods("POST")
	router.HandleFunc("/changes/batch", h.HandleApplyBatch).Methods("POST")

	// Audit trail
	router.HandleFunc("/changes", h.HandleListChanges).Methods("GET")
	router.HandleFunc("/changes/export", h.HandleExportChanges).Methods("GET")
	router.HandleFunc("/changes/{changeId}", h.HandleGetChange).Methods("GET")

	// Revert
	router.HandleFunc("/changes/{changeId}/revert", h.HandleRevertChange).Methods("POST")

	// Health check
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}
