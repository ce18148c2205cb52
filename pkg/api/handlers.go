package api

import (
	"github.com/adfharrison1/mongochange/pkg/domain"
	"github.com/adfharrison1/mongochange/pkg/notify"
)

// Handler provides HTTP handlers for the change API
type Handler struct {
	engine   domain.ChangeEngine
	audit    domain.AuditStore
	notifier *notify.Dispatcher
	exporter ArchiveExporter
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(engine domain.ChangeEngine, audit domain.AuditStore, notifier *notify.Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:   engine,
		audit:    audit,
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithArchiveExporter enables the audit archive export endpoint
func WithArchiveExporter(exporter ArchiveExporter) HandlerOption {
	return func(h *Handler) {
		h.exporter = exporter
	}
}
