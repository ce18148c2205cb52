package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditRecord is the durable log entry for one change attempt. Multiple
// records may exist for the same changeId; lookups select the most
// recent by creation time for a given (changeId, connectionURI).
type AuditRecord struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	ChangeID      string                 `bson:"change_id" json:"change_id"`
	ConnectionURI string                 `bson:"connection_uri" json:"connection_uri"`
	Database      string                 `bson:"database" json:"database"`
	Operation     OperationDoc           `bson:"operation" json:"operation"`
	Metadata      map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Status        Status                 `bson:"status" json:"status"`
	Message       string                 `bson:"message" json:"message"`
	RevertPlan    *RevertPlan            `bson:"revert_plan,omitempty" json:"revert_plan,omitempty"`
	CreatedAt     time.Time              `bson:"created_at" json:"created_at"`
	RevertedAt    *time.Time             `bson:"reverted_at,omitempty" json:"reverted_at,omitempty"`
	RevertMessage string                 `bson:"revert_message,omitempty" json:"revert_message,omitempty"`
}

// ListFilter narrows a listChanges query. An empty Statuses list means
// the default filter, which excludes reverted records.
type ListFilter struct {
	Statuses []Status
	Since    *time.Time
	Limit    int
	Skip     int
}

// MaxListLimit caps the page size of a listChanges query
const MaxListLimit = 500

// DefaultListLimit is used when no limit is given
const DefaultListLimit = 100

// AuditStore is the append-only record of every non-simulated attempt,
// mutable only to mark a record reverted
type AuditStore interface {
	Insert(ctx context.Context, rec *AuditRecord) error
	Latest(ctx context.Context, changeID, connectionURI string) (*AuditRecord, error)
	List(ctx context.Context, connectionURI string, f ListFilter) (total int64, items []AuditRecord, err error)
	MarkReverted(ctx context.Context, id primitive.ObjectID, at time.Time, message string) error
}
