package engine

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

// MockAuditStore provides an in-memory implementation of
// domain.AuditStore for testing
type MockAuditStore struct {
	mu          sync.Mutex
	records     []domain.AuditRecord
	InsertErr   error
	ListErr     error
	insertCalls int
}

// NewMockAuditStore creates an empty mock store
func NewMockAuditStore() *MockAuditStore {
	return &MockAuditStore{}
}

// Insert appends a record, assigning an ID
func (s *MockAuditStore) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.InsertErr != nil {
		return s.InsertErr
	}
	rec.ID = primitive.NewObjectID()
	s.records = append(s.records, *rec)
	return nil
}

// Latest returns the newest record for (changeID, uri)
func (s *MockAuditStore) Latest(ctx context.Context, changeID, uri string) (*domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// forward scan with >= so creation-time ties resolve to the record
	// inserted latest
	var latest *domain.AuditRecord
	for i := range s.records {
		rec := &s.records[i]
		if rec.ChangeID != changeID || rec.ConnectionURI != uri {
			continue
		}
		if latest == nil || !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, domain.ErrChangeNotFound
	}
	out := *latest
	return &out, nil
}

// List filters records the way the real store does: default excludes
// reverted, newest first
func (s *MockAuditStore) List(ctx context.Context, uri string, f domain.ListFilter) (int64, []domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return 0, nil, s.ListErr
	}

	var matched []domain.AuditRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if rec.ConnectionURI != uri {
			continue
		}
		if len(f.Statuses) == 0 {
			if rec.Status == domain.StatusReverted {
				continue
			}
		} else if !containsStatus(f.Statuses, rec.Status) {
			continue
		}
		if f.Since != nil && rec.CreatedAt.Before(*f.Since) {
			continue
		}
		matched = append(matched, rec)
	}

	total := int64(len(matched))
	if f.Skip > 0 {
		if f.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Skip:]
		}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if limit > len(matched) {
		limit = len(matched)
	}
	return total, matched[:limit], nil
}

func containsStatus(statuses []domain.Status, s domain.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// MarkReverted flips one record to reverted
func (s *MockAuditStore) MarkReverted(ctx context.Context, id primitive.ObjectID, at time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = domain.StatusReverted
			s.records[i].RevertedAt = &at
			s.records[i].RevertMessage = message
			return nil
		}
	}
	return domain.ErrChangeNotFound
}

// InsertCalls returns how many inserts were attempted
func (s *MockAuditStore) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCalls
}

// Records returns a copy of everything stored
func (s *MockAuditStore) Records() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.records...)
}
