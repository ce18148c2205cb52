package domain

import "context"

// DatabaseClient is the handle cached per connection string
// This is the core business interface that implementations must conform to
type DatabaseClient interface {
	Database(name string) DatabaseHandle
	Disconnect(ctx context.Context) error
}

// IndexInfo describes one existing index on a collection
type IndexInfo struct {
	Name   string
	Keys   []IndexKey
	Unique bool
}

// DatabaseHandle exposes the collection and index primitives the
// executor and revert engine need against one logical database
type DatabaseHandle interface {
	ListCollectionNames(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string, opts map[string]interface{}) error
	DropCollection(ctx context.Context, name string) error
	CountDocuments(ctx context.Context, coll string) (int64, error)
	ListIndexes(ctx context.Context, coll string) ([]IndexInfo, error)
	CreateIndex(ctx context.Context, coll string, keys []IndexKey, opts IndexOptions) (string, error)
	DropIndex(ctx context.Context, coll, name string) error
}
