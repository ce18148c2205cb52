package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// Apply executes one validated change against its target, idempotently.
// Execution failures are folded into a failed result and audited; the
// returned error is non-nil only for boundary rejections (disallowed
// target) that happen before any execution.
func (e *Engine) Apply(ctx context.Context, req domain.ChangeRequest, opts domain.ApplyOptions) (domain.ChangeResult, error) {
	start := time.Now()

	if req.ChangeID == "" {
		req.ChangeID = uuid.NewString()
	}

	client, err := e.clients.GetClient(ctx, req.Target.ConnectionURI)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return domain.ChangeResult{}, cfgErr
		}
		// connection failures during execution are an execution outcome,
		// not a thrown error
		res := e.finish(ctx, req, opts, domain.ChangeResult{
			ChangeID: req.ChangeID,
			Status:   domain.StatusFailed,
			Message:  err.Error(),
		}, start)
		return res, nil
	}

	db := client.Database(req.Target.Database)

	var res domain.ChangeResult
	switch op := req.Operation.(type) {
	case domain.CreateCollection:
		res = e.applyCreateCollection(ctx, db, op, opts.Simulate)
	case domain.CreateIndex:
		res = e.applyCreateIndex(ctx, db, op, opts.Simulate)
	default:
		// the validator excludes this; kept as a defensive terminal branch
		res = domain.ChangeResult{Status: domain.StatusFailed, Message: "unsupported operation type"}
	}
	res.ChangeID = req.ChangeID

	return e.finish(ctx, req, opts, res, start), nil
}

// finish stamps the duration and writes the audit record unless the
// evaluation was simulated
func (e *Engine) finish(ctx context.Context, req domain.ChangeRequest, opts domain.ApplyOptions, res domain.ChangeResult, start time.Time) domain.ChangeResult {
	res.DurationMs = time.Since(start).Milliseconds()
	if !opts.Simulate {
		e.writeAudit(ctx, req, res)
	}
	log.Printf("INFO: Change '%s' %s: %s", res.ChangeID, res.Status, res.Message)
	return res
}

func (e *Engine) applyCreateCollection(ctx context.Context, db domain.DatabaseHandle, op domain.CreateCollection, simulate bool) domain.ChangeResult {
	// a populated collection is never dropped implicitly, so the plan
	// always requires the collection be empty before drop
	plan := &domain.RevertPlan{
		Type:          domain.RevertDropCollection,
		Collection:    op.Collection,
		RequiresEmpty: true,
	}

	names, err := db.ListCollectionNames(ctx)
	if err != nil {
		return domain.ChangeResult{Status: domain.StatusFailed, Message: fmt.Sprintf("failed to list collections: %v", err)}
	}
	for _, name := range names {
		if name == op.Collection {
			return domain.ChangeResult{
				Status:     domain.StatusSkipped,
				Message:    fmt.Sprintf("collection '%s' already exists", op.Collection),
				RevertPlan: plan,
			}
		}
	}

	if !simulate {
		if err := db.CreateCollection(ctx, op.Collection, op.Options); err != nil {
			// check-then-act race: a concurrent submission won the
			// creation, which is the idempotent skip case
			if errors.Is(err, domain.ErrResourceExists) {
				return domain.ChangeResult{
					Status:     domain.StatusSkipped,
					Message:    fmt.Sprintf("collection '%s' already exists", op.Collection),
					RevertPlan: plan,
				}
			}
			return domain.ChangeResult{Status: domain.StatusFailed, Message: fmt.Sprintf("failed to create collection '%s': %v", op.Collection, err)}
		}
	}

	return domain.ChangeResult{
		Status:     domain.StatusApplied,
		Message:    fmt.Sprintf("collection '%s' created", op.Collection),
		RevertPlan: plan,
	}
}

func (e *Engine) applyCreateIndex(ctx context.Context, db domain.DatabaseHandle, op domain.CreateIndex, simulate bool) domain.ChangeResult {
	name := EffectiveIndexName(op)
	plan := &domain.RevertPlan{
		Type:       domain.RevertDropIndex,
		Collection: op.Collection,
		Index:      name,
	}

	existing, err := db.ListIndexes(ctx, op.Collection)
	if err != nil {
		return domain.ChangeResult{Status: domain.StatusFailed, Message: fmt.Sprintf("failed to list indexes on '%s': %v", op.Collection, err)}
	}
	for _, info := range existing {
		if info.Name != name {
			continue
		}
		if keysEqual(info.Keys, op.Keys) {
			return domain.ChangeResult{
				Status:     domain.StatusSkipped,
				Message:    fmt.Sprintf("index '%s' already exists on '%s'", name, op.Collection),
				RevertPlan: plan,
			}
		}
		// same name, different keys: a collision we never resolve
		// automatically
		return domain.ChangeResult{
			Status:  domain.StatusFailed,
			Message: fmt.Sprintf("index '%s' already exists on '%s' with a different key specification", name, op.Collection),
		}
	}

	if !simulate {
		withName := op.Options
		withName.Name = name
		if _, err := db.CreateIndex(ctx, op.Collection, op.Keys, withName); err != nil {
			if errors.Is(err, domain.ErrResourceExists) {
				return domain.ChangeResult{
					Status:     domain.StatusSkipped,
					Message:    fmt.Sprintf("index '%s' already exists on '%s'", name, op.Collection),
					RevertPlan: plan,
				}
			}
			if errors.Is(err, domain.ErrIndexConflict) {
				return domain.ChangeResult{
					Status:  domain.StatusFailed,
					Message: fmt.Sprintf("index '%s' already exists on '%s' with a different key specification", name, op.Collection),
				}
			}
			return domain.ChangeResult{Status: domain.StatusFailed, Message: fmt.Sprintf("failed to create index '%s' on '%s': %v", name, op.Collection, err)}
		}
	}

	return domain.ChangeResult{
		Status:     domain.StatusApplied,
		Message:    fmt.Sprintf("index '%s' created on '%s'", name, op.Collection),
		RevertPlan: plan,
	}
}

// EffectiveIndexName resolves the identifying name for an index: the
// explicit option when given, otherwise a deterministic name derived
// from the sorted field list so repeated submissions with an identical
// spec stay recognizable as the same logical change.
func EffectiveIndexName(op domain.CreateIndex) string {
	if op.Options.Name != "" {
		return op.Options.Name
	}
	fields := make([]string, len(op.Keys))
	for i, k := range op.Keys {
		fields[i] = k.Field
	}
	sort.Strings(fields)
	return "idx_" + strings.Join(fields, "_")
}

func keysEqual(a, b []domain.IndexKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
