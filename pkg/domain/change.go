package domain

import "context"

// Status is the outcome of a single change attempt
type Status string

const (
	StatusApplied  Status = "applied"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusReverted Status = "reverted"
)

// Target identifies the endpoint and logical database a change applies to
type Target struct {
	ConnectionURI string `bson:"connection_uri" json:"connection_uri"`
	Database      string `bson:"database" json:"database"`
}

// ChangeRequest is one validated, typed schema change submission
type ChangeRequest struct {
	ChangeID  string
	Target    Target
	Operation Operation
	Metadata  map[string]interface{}
}

// RevertPlan describes how to undo an applied change
type RevertPlan struct {
	Type          RevertPlanType `bson:"type" json:"type"`
	Collection    string         `bson:"collection" json:"collection"`
	Index         string         `bson:"index,omitempty" json:"index,omitempty"`
	RequiresEmpty bool           `bson:"requires_empty,omitempty" json:"requires_empty,omitempty"`
}

// RevertPlanType identifies the undo action
type RevertPlanType string

const (
	RevertDropCollection RevertPlanType = "dropCollection"
	RevertDropIndex      RevertPlanType = "dropIndex"
)

// ChangeResult is the outcome of applying one change
type ChangeResult struct {
	ChangeID   string      `json:"change_id"`
	Status     Status      `json:"status"`
	Message    string      `json:"message"`
	RevertPlan *RevertPlan `json:"revert_plan,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// BatchStatus is the overall outcome of a batch submission
type BatchStatus string

const (
	BatchOK         BatchStatus = "ok"
	BatchRolledBack BatchStatus = "rolled_back"
)

// BatchResult is the outcome of applying an ordered list of changes
type BatchResult struct {
	Status   BatchStatus    `json:"status"`
	FailedAt *int           `json:"failed_at,omitempty"`
	Results  []ChangeResult `json:"results"`
}

// RevertResult is the outcome of undoing a previously recorded change
type RevertResult struct {
	ChangeID string `json:"change_id"`
	Status   Status `json:"status"` // reverted or failed
	Message  string `json:"message"`
}

// ApplyOptions control a single change application
type ApplyOptions struct {
	// Simulate evaluates the change without mutating the target or
	// writing to the audit store
	Simulate bool
}

// BatchOptions control a batch application
type BatchOptions struct {
	StopOnError bool
	Simulate    bool
}

// RevertOptions locate the audit record to undo
type RevertOptions struct {
	ConnectionURI string
	// Database overrides the database recorded on the audit entry
	Database string
}

// ChangeEngine is the core surface consumed by the HTTP layer
type ChangeEngine interface {
	Apply(ctx context.Context, req ChangeRequest, opts ApplyOptions) (ChangeResult, error)
	ApplyBatch(ctx context.Context, reqs []ChangeRequest, opts BatchOptions) BatchResult
	Revert(ctx context.Context, changeID string, opts RevertOptions) (RevertResult, error)
}
