package api

import (
	"context"
	"sync"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// MockChangeEngine provides a mock implementation of
// domain.ChangeEngine for testing handlers
type MockChangeEngine struct {
	mu sync.Mutex

	ApplyResult  domain.ChangeResult
	ApplyErr     error
	BatchResult  domain.BatchResult
	RevertResult domain.RevertResult
	RevertErr    error

	applyCalls  int
	batchCalls  int
	revertCalls int

	LastRequest  domain.ChangeRequest
	LastRequests []domain.ChangeRequest
	LastApply    domain.ApplyOptions
	LastBatch    domain.BatchOptions
	LastRevert   domain.RevertOptions
	LastChangeID string
}

// NewMockChangeEngine creates a mock engine
func NewMockChangeEngine() *MockChangeEngine {
	return &MockChangeEngine{}
}

// Apply records the call and returns the configured result
func (m *MockChangeEngine) Apply(ctx context.Context, req domain.ChangeRequest, opts domain.ApplyOptions) (domain.ChangeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	m.LastRequest = req
	m.LastApply = opts
	return m.ApplyResult, m.ApplyErr
}

// ApplyBatch records the call and returns the configured result
func (m *MockChangeEngine) ApplyBatch(ctx context.Context, reqs []domain.ChangeRequest, opts domain.BatchOptions) domain.BatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.LastRequests = reqs
	m.LastBatch = opts
	return m.BatchResult
}

// Revert records the call and returns the configured result
func (m *MockChangeEngine) Revert(ctx context.Context, changeID string, opts domain.RevertOptions) (domain.RevertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revertCalls++
	m.LastChangeID = changeID
	m.LastRevert = opts
	return m.RevertResult, m.RevertErr
}

// ApplyCalls returns how many applies were attempted
func (m *MockChangeEngine) ApplyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyCalls
}

// BatchCalls returns how many batches were attempted
func (m *MockChangeEngine) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// RevertCalls returns how many reverts were attempted
func (m *MockChangeEngine) RevertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revertCalls
}
