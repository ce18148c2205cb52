package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// Revert undoes the most recent recorded attempt for a change
// identifier. The returned error is non-nil only for boundary
// rejections; everything else is reported as a failed result.
func (e *Engine) Revert(ctx context.Context, changeID string, opts domain.RevertOptions) (domain.RevertResult, error) {
	rec, err := e.audit.Latest(ctx, changeID, opts.ConnectionURI)
	if err != nil {
		if errors.Is(err, domain.ErrChangeNotFound) {
			return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: "changeId not found"}, nil
		}
		return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: fmt.Sprintf("failed to look up change: %v", err)}, nil
	}

	// reverted is terminal for a record; a second revert is an explicit
	// rejection rather than a blind re-drop
	if rec.Status == domain.StatusReverted {
		return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: "change already reverted"}, nil
	}

	dbName := rec.Database
	if opts.Database != "" {
		dbName = opts.Database
	}

	client, err := e.clients.GetClient(ctx, rec.ConnectionURI)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return domain.RevertResult{}, cfgErr
		}
		return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: err.Error()}, nil
	}
	db := client.Database(dbName)

	op, err := rec.Operation.ToOperation()
	if err != nil {
		return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: fmt.Sprintf("cannot revert: %v", err)}, nil
	}

	var message string
	switch typed := op.(type) {
	case domain.CreateIndex:
		name := EffectiveIndexName(typed)
		if rec.RevertPlan != nil && rec.RevertPlan.Index != "" {
			name = rec.RevertPlan.Index
		}
		if err := db.DropIndex(ctx, typed.Collection, name); err != nil {
			return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: fmt.Sprintf("failed to revert change: %v", err)}, nil
		}
		message = fmt.Sprintf("index '%s' dropped from '%s'", name, typed.Collection)

	case domain.CreateCollection:
		count, err := db.CountDocuments(ctx, typed.Collection)
		if err != nil {
			return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: fmt.Sprintf("failed to count documents in '%s': %v", typed.Collection, err)}, nil
		}
		if count > 0 {
			return domain.RevertResult{
				ChangeID: changeID,
				Status:   domain.StatusFailed,
				Message:  fmt.Sprintf("collection '%s' is not empty (%d documents), refusing to drop", typed.Collection, count),
			}, nil
		}
		if err := db.DropCollection(ctx, typed.Collection); err != nil {
			return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: fmt.Sprintf("failed to revert change: %v", err)}, nil
		}
		message = fmt.Sprintf("collection '%s' dropped", typed.Collection)

	default:
		return domain.RevertResult{ChangeID: changeID, Status: domain.StatusFailed, Message: "unsupported operation type for revert"}, nil
	}

	if err := e.audit.MarkReverted(ctx, rec.ID, e.now().UTC(), message); err != nil {
		// the target mutation already happened; record the gap and move on
		log.Printf("ERROR: Failed to mark change '%s' reverted: %v", changeID, err)
	}

	log.Printf("INFO: Change '%s' reverted: %s", changeID, message)
	return domain.RevertResult{ChangeID: changeID, Status: domain.StatusReverted, Message: message}, nil
}
