package connections

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// MongoDB server error codes the executor needs to classify
const (
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
	codeNamespaceNotFound     = 26
)

// ConnectMongo establishes a MongoDB client for the given URI
func ConnectMongo(ctx context.Context, uri string) (domain.DatabaseClient, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &mongoClient{client: client}, nil
}

// mongoClient adapts *mongo.Client to domain.DatabaseClient
type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) Database(name string) domain.DatabaseHandle {
	return &mongoDatabase{db: c.client.Database(name)}
}

func (c *mongoClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	return d.db.ListCollectionNames(ctx, bson.D{})
}

// CreateCollection issues a raw create command so caller-supplied
// options (capped, size, validators) pass through untouched
func (d *mongoDatabase) CreateCollection(ctx context.Context, name string, opts map[string]interface{}) error {
	cmd := bson.D{{Key: "create", Value: name}}
	for k, v := range opts {
		cmd = append(cmd, bson.E{Key: k, Value: v})
	}
	if err := d.db.RunCommand(ctx, cmd).Err(); err != nil {
		return translateError(err)
	}
	return nil
}

func (d *mongoDatabase) DropCollection(ctx context.Context, name string) error {
	return d.db.Collection(name).Drop(ctx)
}

func (d *mongoDatabase) CountDocuments(ctx context.Context, coll string) (int64, error) {
	return d.db.Collection(coll).CountDocuments(ctx, bson.D{})
}

func (d *mongoDatabase) ListIndexes(ctx context.Context, coll string) ([]domain.IndexInfo, error) {
	cursor, err := d.db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		// a collection that does not exist yet simply has no indexes
		if hasErrorCode(err, codeNamespaceNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer cursor.Close(ctx)

	var infos []domain.IndexInfo
	for cursor.Next(ctx) {
		var raw struct {
			Name   string `bson:"name"`
			Key    bson.D `bson:"key"`
			Unique bool   `bson:"unique"`
		}
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		info := domain.IndexInfo{Name: raw.Name, Unique: raw.Unique}
		for _, e := range raw.Key {
			info.Keys = append(info.Keys, domain.IndexKey{
				Field:     e.Key,
				Direction: toDirection(e.Value),
			})
		}
		infos = append(infos, info)
	}
	return infos, cursor.Err()
}

func (d *mongoDatabase) CreateIndex(ctx context.Context, coll string, keys []domain.IndexKey, opts domain.IndexOptions) (string, error) {
	keyDoc := bson.D{}
	for _, k := range keys {
		keyDoc = append(keyDoc, bson.E{Key: k.Field, Value: k.Direction})
	}

	idxOpts := options.Index()
	if opts.Name != "" {
		idxOpts.SetName(opts.Name)
	}
	if opts.Unique {
		idxOpts.SetUnique(true)
	}
	if len(opts.PartialFilter) > 0 {
		idxOpts.SetPartialFilterExpression(opts.PartialFilter)
	}

	name, err := d.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keyDoc,
		Options: idxOpts,
	})
	if err != nil {
		return "", translateError(err)
	}
	return name, nil
}

func (d *mongoDatabase) DropIndex(ctx context.Context, coll, name string) error {
	if _, err := d.db.Collection(coll).Indexes().DropOne(ctx, name); err != nil {
		return fmt.Errorf("failed to drop index %q: %w", name, err)
	}
	return nil
}

// translateError maps driver errors onto the domain sentinels the
// executor dispatches on
func translateError(err error) error {
	switch {
	case hasErrorCode(err, codeNamespaceExists):
		return fmt.Errorf("%w: %v", domain.ErrResourceExists, err)
	case hasErrorCode(err, codeIndexKeySpecsConflict):
		return fmt.Errorf("%w: %v", domain.ErrIndexConflict, err)
	case hasErrorCode(err, codeIndexOptionsConflict):
		return fmt.Errorf("%w: %v", domain.ErrIndexConflict, err)
	default:
		return err
	}
}

func hasErrorCode(err error, code int) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(code)
	}
	return false
}

func toDirection(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
