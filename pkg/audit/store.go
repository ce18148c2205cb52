// Package audit persists the append-only record of every non-simulated
// change attempt in a MongoDB collection.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// DefaultCollection is where audit records live unless configured
// otherwise
const DefaultCollection = "schema_changes"

// Store implements domain.AuditStore on a MongoDB collection
type Store struct {
	coll *mongo.Collection
}

// NewStore creates a store over the given database and collection
func NewStore(client *mongo.Client, database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: client.Database(database).Collection(collection)}
}

// Insert appends one record. Records are never updated afterwards
// except to mark them reverted.
func (s *Store) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	res, err := s.coll.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = id
	}
	return nil
}

// Latest returns the most recent record for (changeID, connectionURI)
func (s *Store) Latest(ctx context.Context, changeID, connectionURI string) (*domain.AuditRecord, error) {
	filter := bson.M{
		"change_id":      changeID,
		"connection_uri": connectionURI,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var rec domain.AuditRecord
	err := s.coll.FindOne(ctx, filter, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrChangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up audit record: %w", err)
	}
	return &rec, nil
}

// List returns the matching page newest-first plus the total matching
// count. With no explicit status filter, reverted records are excluded.
func (s *Store) List(ctx context.Context, connectionURI string, f domain.ListFilter) (int64, []domain.AuditRecord, error) {
	filter := buildListFilter(connectionURI, f)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	limit := clampLimit(f.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(f.Skip))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer cursor.Close(ctx)

	var items []domain.AuditRecord
	if err := cursor.All(ctx, &items); err != nil {
		return 0, nil, fmt.Errorf("failed to decode audit records: %w", err)
	}
	return total, items, nil
}

// MarkReverted is the only mutation an existing record ever sees
func (s *Store) MarkReverted(ctx context.Context, id primitive.ObjectID, at time.Time, message string) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":         domain.StatusReverted,
			"reverted_at":    at,
			"revert_message": message,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark audit record reverted: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrChangeNotFound
	}
	return nil
}

// buildListFilter translates a domain.ListFilter into a query document
func buildListFilter(connectionURI string, f domain.ListFilter) bson.M {
	filter := bson.M{"connection_uri": connectionURI}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	} else {
		filter["status"] = bson.M{"$ne": domain.StatusReverted}
	}
	if f.Since != nil {
		filter["created_at"] = bson.M{"$gte": *f.Since}
	}
	return filter
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return domain.DefaultListLimit
	}
	if limit > domain.MaxListLimit {
		return domain.MaxListLimit
	}
	return limit
}
