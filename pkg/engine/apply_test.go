package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

func newTestEngine() (*Engine, *MockClientProvider, *MockAuditStore) {
	provider := NewMockClientProvider()
	store := NewMockAuditStore()
	return New(provider, store), provider, store
}

func collectionRequest(changeID, coll string) domain.ChangeRequest {
	return domain.ChangeRequest{
		ChangeID: changeID,
		Target:   domain.Target{ConnectionURI: "mongodb://x", Database: "D"},
		Operation: domain.CreateCollection{
			Collection: coll,
		},
	}
}

func indexRequest(changeID, coll string, keys []domain.IndexKey, opts domain.IndexOptions) domain.ChangeRequest {
	return domain.ChangeRequest{
		ChangeID: changeID,
		Target:   domain.Target{ConnectionURI: "mongodb://x", Database: "D"},
		Operation: domain.CreateIndex{
			Collection: coll,
			Keys:       keys,
			Options:    opts,
		},
	}
}

func TestEngine_Apply_CreateCollection_Idempotent(t *testing.T) {
	eng, provider, store := newTestEngine()
	ctx := context.Background()

	first, err := eng.Apply(ctx, collectionRequest("chg-1", "users"), domain.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, first.Status)
	require.NotNil(t, first.RevertPlan)
	assert.Equal(t, domain.RevertDropCollection, first.RevertPlan.Type)
	assert.Equal(t, "users", first.RevertPlan.Collection)
	assert.True(t, first.RevertPlan.RequiresEmpty)
	assert.True(t, provider.Client("mongodb://x").DB("D").HasCollection("users"))

	second, err := eng.Apply(ctx, collectionRequest("chg-1", "users"), domain.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, second.Status)
	assert.Contains(t, second.Message, "already exists")

	// both attempts carry the same revert plan shape
	assert.Equal(t, first.RevertPlan, second.RevertPlan)

	// the target was only mutated once
	assert.Equal(t, 1, provider.Client("mongodb://x").DB("D").CreateCollCalls())

	// every non-simulated attempt is audited, skipped included
	assert.Equal(t, 2, store.InsertCalls())
}

func TestEngine_Apply_CreateIndex(t *testing.T) {
	emailKey := []domain.IndexKey{{Field: "email", Direction: 1}}

	tests := []struct {
		name           string
		setup          func(db *MockDatabase)
		request        domain.ChangeRequest
		expectedStatus domain.Status
		expectedIndex  string
		expectMessage  string
	}{
		{
			name:           "new index is applied with explicit name",
			request:        indexRequest("chg-1", "users", emailKey, domain.IndexOptions{Name: "ix_email"}),
			expectedStatus: domain.StatusApplied,
			expectedIndex:  "ix_email",
		},
		{
			name: "identical spec is skipped",
			setup: func(db *MockDatabase) {
				db.SeedIndex("users", domain.IndexInfo{Name: "ix_email", Keys: emailKey})
			},
			request:        indexRequest("chg-2", "users", emailKey, domain.IndexOptions{Name: "ix_email"}),
			expectedStatus: domain.StatusSkipped,
			expectedIndex:  "ix_email",
			expectMessage:  "already exists",
		},
		{
			name: "same name different keys is a failed collision",
			setup: func(db *MockDatabase) {
				db.SeedIndex("users", domain.IndexInfo{Name: "ix_email", Keys: emailKey})
			},
			request: indexRequest("chg-3", "users",
				[]domain.IndexKey{{Field: "age", Direction: -1}},
				domain.IndexOptions{Name: "ix_email"}),
			expectedStatus: domain.StatusFailed,
			expectMessage:  "different key specification",
		},
		{
			name: "derived name from sorted fields",
			request: indexRequest("chg-4", "events",
				[]domain.IndexKey{{Field: "type", Direction: 1}, {Field: "created", Direction: -1}},
				domain.IndexOptions{}),
			expectedStatus: domain.StatusApplied,
			expectedIndex:  "idx_created_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, provider, _ := newTestEngine()
			db := provider.Client("mongodb://x").DB("D")
			if tt.setup != nil {
				tt.setup(db)
			}

			res, err := eng.Apply(context.Background(), tt.request, domain.ApplyOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, res.Status)
			if tt.expectMessage != "" {
				assert.Contains(t, res.Message, tt.expectMessage)
			}

			if tt.expectedStatus == domain.StatusFailed {
				// a collision never gets a revert plan
				assert.Nil(t, res.RevertPlan)
				return
			}

			require.NotNil(t, res.RevertPlan)
			assert.Equal(t, domain.RevertDropIndex, res.RevertPlan.Type)
			assert.Equal(t, tt.expectedIndex, res.RevertPlan.Index)
			if tt.expectedStatus == domain.StatusApplied {
				assert.True(t, db.HasIndex(tt.request.Operation.(domain.CreateIndex).Collection, tt.expectedIndex))
			}
		})
	}
}

func TestEngine_Apply_ReappliedIndexScenario(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()
	req := indexRequest("", "users",
		[]domain.IndexKey{{Field: "email", Direction: 1}},
		domain.IndexOptions{Name: "ix_email"})

	first, err := eng.Apply(ctx, req, domain.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApplied, first.Status)
	assert.NotEmpty(t, first.ChangeID, "a missing changeId is generated")
	require.NotNil(t, first.RevertPlan)
	assert.Equal(t, &domain.RevertPlan{
		Type:       domain.RevertDropIndex,
		Collection: "users",
		Index:      "ix_email",
	}, first.RevertPlan)

	second, err := eng.Apply(ctx, req, domain.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, second.Status)
}

func TestEngine_Apply_Simulate(t *testing.T) {
	tests := []struct {
		name    string
		request domain.ChangeRequest
	}{
		{
			name:    "simulated createCollection",
			request: collectionRequest("chg-1", "users"),
		},
		{
			name: "simulated createIndex",
			request: indexRequest("chg-2", "users",
				[]domain.IndexKey{{Field: "email", Direction: 1}},
				domain.IndexOptions{Name: "ix_email"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, provider, store := newTestEngine()

			res, err := eng.Apply(context.Background(), tt.request, domain.ApplyOptions{Simulate: true})
			require.NoError(t, err)
			assert.Equal(t, domain.StatusApplied, res.Status)
			require.NotNil(t, res.RevertPlan, "dry runs still report the revert plan")

			db := provider.Client("mongodb://x").DB("D")
			assert.Zero(t, db.CreateCollCalls(), "simulation never mutates the target")
			assert.Zero(t, db.CreateIndexCalls(), "simulation never mutates the target")
			assert.Zero(t, store.InsertCalls(), "simulation never writes audit records")
		})
	}
}

func TestEngine_Apply_DuplicateRaceIsSkipped(t *testing.T) {
	// the existence check and the creation are not atomic: the loser of
	// the race sees a duplicate-resource error from the target and must
	// report skipped, not failed
	eng, provider, store := newTestEngine()
	db := provider.Client("mongodb://x").DB("D")
	db.CreateCollErr = domain.ErrResourceExists

	res, err := eng.Apply(context.Background(), collectionRequest("chg-1", "users"), domain.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, res.Status)
	require.NotNil(t, res.RevertPlan)
	assert.Equal(t, 1, store.InsertCalls())
}

func TestEngine_Apply_ExecutionFailureIsAudited(t *testing.T) {
	eng, provider, store := newTestEngine()
	db := provider.Client("mongodb://x").DB("D")
	db.ListCollectionsErr = assert.AnError

	res, err := eng.Apply(context.Background(), collectionRequest("chg-1", "users"), domain.ApplyOptions{})
	require.NoError(t, err, "execution failures are results, not errors")
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "failed to list collections")

	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusFailed, records[0].Status)
}

func TestEngine_Apply_DisallowedTargetIsRejected(t *testing.T) {
	eng, provider, store := newTestEngine()
	provider.AllowErr = &domain.ConfigurationError{Reason: "connection URI is not allowed by the configured pattern"}

	_, err := eng.Apply(context.Background(), collectionRequest("chg-1", "users"), domain.ApplyOptions{})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	// boundary rejections happen before execution and are never audited
	assert.Zero(t, store.InsertCalls())
}

func TestEffectiveIndexName(t *testing.T) {
	tests := []struct {
		name     string
		op       domain.CreateIndex
		expected string
	}{
		{
			name: "explicit name wins",
			op: domain.CreateIndex{
				Keys:    []domain.IndexKey{{Field: "email", Direction: 1}},
				Options: domain.IndexOptions{Name: "ix_email"},
			},
			expected: "ix_email",
		},
		{
			name: "derived from single field",
			op: domain.CreateIndex{
				Keys: []domain.IndexKey{{Field: "email", Direction: 1}},
			},
			expected: "idx_email",
		},
		{
			name: "derived name sorts fields",
			op: domain.CreateIndex{
				Keys: []domain.IndexKey{
					{Field: "zip", Direction: 1},
					{Field: "city", Direction: -1},
				},
			},
			expected: "idx_city_zip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveIndexName(tt.op))
		})
	}
}
