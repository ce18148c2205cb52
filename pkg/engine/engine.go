// Package engine is the change-orchestration core: it decides whether a
// requested change is new, already satisfied, or conflicting, records
// every non-simulated attempt, computes how to undo it, and compensates
// partially applied batches.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// ClientProvider resolves a connection string to a database client
type ClientProvider interface {
	GetClient(ctx context.Context, uri string) (domain.DatabaseClient, error)
}

// Engine applies, batches, and reverts schema changes
type Engine struct {
	clients ClientProvider
	audit   domain.AuditStore
	now     func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithClock overrides the time source, used by tests for deterministic
// audit timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine with dependency injection
func New(clients ClientProvider, audit domain.AuditStore, opts ...EngineOption) *Engine {
	e := &Engine{
		clients: clients,
		audit:   audit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// writeAudit persists one record for a non-simulated attempt. An audit
// write failure never changes the already-computed outcome; it is
// logged and the result stands.
func (e *Engine) writeAudit(ctx context.Context, req domain.ChangeRequest, res domain.ChangeResult) {
	rec := &domain.AuditRecord{
		ChangeID:      res.ChangeID,
		ConnectionURI: req.Target.ConnectionURI,
		Database:      req.Target.Database,
		Operation:     domain.NewOperationDoc(req.Operation),
		Metadata:      req.Metadata,
		Status:        res.Status,
		Message:       res.Message,
		RevertPlan:    res.RevertPlan,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.audit.Insert(ctx, rec); err != nil {
		log.Printf("ERROR: Failed to write audit record for change '%s': %v", res.ChangeID, err)
	}
}
