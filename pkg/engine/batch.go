package engine

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// appliedChange tracks one mutation that is a candidate for
// compensation if a later step fails
type appliedChange struct {
	changeID string
	uri      string
	database string
}

// ApplyBatch applies an ordered list of changes sequentially. On a
// failed step with StopOnError set and not simulating, previously
// applied (never skipped) changes are compensated in reverse
// application order, best effort, and the batch reports rolled_back.
// Remaining requests are never attempted.
func (e *Engine) ApplyBatch(ctx context.Context, reqs []domain.ChangeRequest, opts domain.BatchOptions) domain.BatchResult {
	results := make([]domain.ChangeResult, 0, len(reqs))
	var applied []appliedChange

	for i := range reqs {
		// assign an identifier before execution so even a failed step is
		// correlatable with its audit trail
		if reqs[i].ChangeID == "" {
			reqs[i].ChangeID = uuid.NewString()
		}

		res, err := e.Apply(ctx, reqs[i], domain.ApplyOptions{Simulate: opts.Simulate})
		if err != nil {
			// boundary rejection: surfaces as a failed step in the batch
			res = domain.ChangeResult{
				ChangeID: reqs[i].ChangeID,
				Status:   domain.StatusFailed,
				Message:  err.Error(),
			}
		}
		results = append(results, res)

		if res.Status == domain.StatusFailed && opts.StopOnError && !opts.Simulate {
			e.compensate(ctx, applied)
			failedAt := i
			return domain.BatchResult{
				Status:   domain.BatchRolledBack,
				FailedAt: &failedAt,
				Results:  results,
			}
		}

		// skipped changes caused no mutation and are never compensated
		if res.Status == domain.StatusApplied && !opts.Simulate {
			applied = append(applied, appliedChange{
				changeID: res.ChangeID,
				uri:      reqs[i].Target.ConnectionURI,
				database: reqs[i].Target.Database,
			})
		}
	}

	return domain.BatchResult{Status: domain.BatchOK, Results: results}
}

// compensate undoes prior applied changes in reverse application order.
// Individual failures are logged and swallowed: the rollback is best
// effort, not a transaction.
func (e *Engine) compensate(ctx context.Context, applied []appliedChange) {
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		res, err := e.Revert(ctx, c.changeID, domain.RevertOptions{
			ConnectionURI: c.uri,
			Database:      c.database,
		})
		if err != nil {
			log.Printf("WARN: Compensation of change '%s' failed: %v", c.changeID, err)
			continue
		}
		if res.Status != domain.StatusReverted {
			log.Printf("WARN: Compensation of change '%s' did not complete: %s", c.changeID, res.Message)
		}
	}
}
