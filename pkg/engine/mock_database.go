package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// MockClientProvider provides a mock implementation of ClientProvider
// for testing
type MockClientProvider struct {
	mu      sync.Mutex
	clients map[string]*MockDatabaseClient
	// AllowErr, when set, is returned for every URI before any lookup
	AllowErr error
	getCalls int
}

// NewMockClientProvider creates a provider that hands out one mock
// client per URI
func NewMockClientProvider() *MockClientProvider {
	return &MockClientProvider{clients: make(map[string]*MockDatabaseClient)}
}

// GetClient returns the mock client for uri, creating it on first use
func (p *MockClientProvider) GetClient(ctx context.Context, uri string) (domain.DatabaseClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	if p.AllowErr != nil {
		return nil, p.AllowErr
	}
	client, ok := p.clients[uri]
	if !ok {
		client = NewMockDatabaseClient()
		p.clients[uri] = client
	}
	return client, nil
}

// Client returns the mock client cached for uri, creating it on first
// use so tests can seed state before execution
func (p *MockClientProvider) Client(uri string) *MockDatabaseClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	client, ok := p.clients[uri]
	if !ok {
		client = NewMockDatabaseClient()
		p.clients[uri] = client
	}
	return client
}

// GetCalls returns how many times GetClient was invoked
func (p *MockClientProvider) GetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getCalls
}

// MockDatabaseClient provides a mock implementation of
// domain.DatabaseClient backed by in-memory state
type MockDatabaseClient struct {
	mu        sync.Mutex
	databases map[string]*MockDatabase
}

// NewMockDatabaseClient creates an empty mock client
func NewMockDatabaseClient() *MockDatabaseClient {
	return &MockDatabaseClient{databases: make(map[string]*MockDatabase)}
}

// Database returns the named mock database, creating it on first use
func (c *MockDatabaseClient) Database(name string) domain.DatabaseHandle {
	return c.DB(name)
}

// DB is Database with the concrete type, for test setup and assertions
func (c *MockDatabaseClient) DB(name string) *MockDatabase {
	c.mu.Lock()
	defer c.mu.Unlock()
	db, ok := c.databases[name]
	if !ok {
		db = &MockDatabase{
			collections: make(map[string]int64),
			indexes:     make(map[string][]domain.IndexInfo),
		}
		c.databases[name] = db
	}
	return db
}

// Disconnect is a no-op for the mock
func (c *MockDatabaseClient) Disconnect(ctx context.Context) error { return nil }

// MockDatabase is one in-memory logical database. Collections map to
// their document counts; indexes are tracked per collection.
type MockDatabase struct {
	mu          sync.Mutex
	collections map[string]int64
	indexes     map[string][]domain.IndexInfo

	// error injection per primitive
	ListCollectionsErr error
	CreateCollErr      error
	DropCollErr        error
	CountErr           error
	ListIndexesErr     error
	CreateIndexErr     error
	DropIndexErr       error

	createCollCalls  int
	createIndexCalls int
	dropCollCalls    int
	dropIndexCalls   int
}

// SeedCollection registers a collection with a document count
func (d *MockDatabase) SeedCollection(name string, docs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collections[name] = docs
}

// SeedIndex registers an existing index on a collection
func (d *MockDatabase) SeedIndex(coll string, info domain.IndexInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.indexes[coll] = append(d.indexes[coll], info)
}

// HasCollection reports whether a collection exists
func (d *MockDatabase) HasCollection(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.collections[name]
	return ok
}

// HasIndex reports whether an index with the given name exists
func (d *MockDatabase) HasIndex(coll, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range d.indexes[coll] {
		if info.Name == name {
			return true
		}
	}
	return false
}

// CreateCollCalls returns how many creates were attempted
func (d *MockDatabase) CreateCollCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createCollCalls
}

// CreateIndexCalls returns how many index creates were attempted
func (d *MockDatabase) CreateIndexCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createIndexCalls
}

func (d *MockDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ListCollectionsErr != nil {
		return nil, d.ListCollectionsErr
	}
	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	return names, nil
}

func (d *MockDatabase) CreateCollection(ctx context.Context, name string, opts map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createCollCalls++
	if d.CreateCollErr != nil {
		return d.CreateCollErr
	}
	if _, exists := d.collections[name]; exists {
		return fmt.Errorf("%w: collection %s", domain.ErrResourceExists, name)
	}
	d.collections[name] = 0
	return nil
}

func (d *MockDatabase) DropCollection(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropCollCalls++
	if d.DropCollErr != nil {
		return d.DropCollErr
	}
	delete(d.collections, name)
	delete(d.indexes, name)
	return nil
}

func (d *MockDatabase) CountDocuments(ctx context.Context, coll string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CountErr != nil {
		return 0, d.CountErr
	}
	return d.collections[coll], nil
}

func (d *MockDatabase) ListIndexes(ctx context.Context, coll string) ([]domain.IndexInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ListIndexesErr != nil {
		return nil, d.ListIndexesErr
	}
	return append([]domain.IndexInfo(nil), d.indexes[coll]...), nil
}

func (d *MockDatabase) CreateIndex(ctx context.Context, coll string, keys []domain.IndexKey, opts domain.IndexOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createIndexCalls++
	if d.CreateIndexErr != nil {
		return "", d.CreateIndexErr
	}
	for _, info := range d.indexes[coll] {
		if info.Name == opts.Name {
			return "", fmt.Errorf("%w: index %s", domain.ErrIndexConflict, opts.Name)
		}
	}
	d.indexes[coll] = append(d.indexes[coll], domain.IndexInfo{
		Name:   opts.Name,
		Keys:   append([]domain.IndexKey(nil), keys...),
		Unique: opts.Unique,
	})
	// creating an index implicitly creates the collection
	if _, exists := d.collections[coll]; !exists {
		d.collections[coll] = 0
	}
	return opts.Name, nil
}

func (d *MockDatabase) DropIndex(ctx context.Context, coll, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropIndexCalls++
	if d.DropIndexErr != nil {
		return d.DropIndexErr
	}
	infos := d.indexes[coll]
	for i, info := range infos {
		if info.Name == name {
			d.indexes[coll] = append(infos[:i], infos[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("index %s not found on %s", name, coll)
}
