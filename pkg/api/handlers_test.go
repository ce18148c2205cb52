package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/mongochange/pkg/domain"
	"github.com/adfharrison1/mongochange/pkg/engine"
	"github.com/adfharrison1/mongochange/pkg/notify"
)

func newTestRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func validChangeBody() []byte {
	return []byte(`{
		"change_id": "chg-1",
		"target": {"connection_uri": "mongodb://x", "database": "D"},
		"operation": {"type": "createCollection", "collection": "users"}
	}`)
}

func TestHandler_HandleApplyChange(t *testing.T) {
	tests := []struct {
		name           string
		body           []byte
		query          string
		applyResult    domain.ChangeResult
		applyErr       error
		expectedStatus int
		expectApply    bool
	}{
		{
			name:           "applied change returns 201",
			body:           validChangeBody(),
			applyResult:    domain.ChangeResult{ChangeID: "chg-1", Status: domain.StatusApplied},
			expectedStatus: http.StatusCreated,
			expectApply:    true,
		},
		{
			name:           "skipped change returns 200",
			body:           validChangeBody(),
			applyResult:    domain.ChangeResult{ChangeID: "chg-1", Status: domain.StatusSkipped},
			expectedStatus: http.StatusOK,
			expectApply:    true,
		},
		{
			name:           "failed change returns 422",
			body:           validChangeBody(),
			applyResult:    domain.ChangeResult{ChangeID: "chg-1", Status: domain.StatusFailed},
			expectedStatus: http.StatusUnprocessableEntity,
			expectApply:    true,
		},
		{
			name:           "invalid payload returns 400 before the engine runs",
			body:           []byte(`{"target": {"connection_uri": "", "database": ""}}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "disallowed target returns 403",
			body:           validChangeBody(),
			applyErr:       &domain.ConfigurationError{Reason: "connection URI is not allowed by the configured pattern"},
			expectedStatus: http.StatusForbidden,
			expectApply:    true,
		},
		{
			name:           "simulate is forwarded to the engine",
			body:           validChangeBody(),
			query:          "?simulate=true",
			applyResult:    domain.ChangeResult{ChangeID: "chg-1", Status: domain.StatusApplied},
			expectedStatus: http.StatusCreated,
			expectApply:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEngine := NewMockChangeEngine()
			mockEngine.ApplyResult = tt.applyResult
			mockEngine.ApplyErr = tt.applyErr
			handler := NewHandler(mockEngine, engine.NewMockAuditStore(), notify.NewDispatcher())
			router := newTestRouter(handler)

			req := httptest.NewRequest("POST", "/changes"+tt.query, bytes.NewBuffer(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if !tt.expectApply {
				assert.Zero(t, mockEngine.ApplyCalls(), "validation failures never reach the engine")
				return
			}
			assert.Equal(t, 1, mockEngine.ApplyCalls())
			if tt.query != "" {
				assert.True(t, mockEngine.LastApply.Simulate)
			}
		})
	}
}

func TestHandler_HandleApplyBatch(t *testing.T) {
	failedAt := 1

	tests := []struct {
		name            string
		body            string
		batchResult     domain.BatchResult
		expectedStatus  int
		expectBatch     bool
		expectedStopOnE bool
	}{
		{
			name: "ok batch returns 200 with stop_on_error defaulting to true",
			body: `{"changes": [
				{"target": {"connection_uri": "mongodb://x", "database": "D"},
				 "operation": {"type": "createCollection", "collection": "users"}}
			]}`,
			batchResult:     domain.BatchResult{Status: domain.BatchOK},
			expectedStatus:  http.StatusOK,
			expectBatch:     true,
			expectedStopOnE: true,
		},
		{
			name: "rolled back batch returns 422",
			body: `{"changes": [
				{"target": {"connection_uri": "mongodb://x", "database": "D"},
				 "operation": {"type": "createCollection", "collection": "users"}}
			]}`,
			batchResult:     domain.BatchResult{Status: domain.BatchRolledBack, FailedAt: &failedAt},
			expectedStatus:  http.StatusUnprocessableEntity,
			expectBatch:     true,
			expectedStopOnE: true,
		},
		{
			name: "explicit stop_on_error false is forwarded",
			body: `{"stop_on_error": false, "changes": [
				{"target": {"connection_uri": "mongodb://x", "database": "D"},
				 "operation": {"type": "createCollection", "collection": "users"}}
			]}`,
			batchResult:    domain.BatchResult{Status: domain.BatchOK},
			expectedStatus: http.StatusOK,
			expectBatch:    true,
		},
		{
			name:           "empty batch returns 400",
			body:           `{"changes": []}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "one invalid change rejects the whole batch before execution",
			body: `{"changes": [
				{"target": {"connection_uri": "mongodb://x", "database": "D"},
				 "operation": {"type": "createCollection", "collection": "users"}},
				{"target": {"connection_uri": "", "database": "D"},
				 "operation": {"type": "createCollection", "collection": "orders"}}
			]}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEngine := NewMockChangeEngine()
			mockEngine.BatchResult = tt.batchResult
			handler := NewHandler(mockEngine, engine.NewMockAuditStore(), notify.NewDispatcher())
			router := newTestRouter(handler)

			req := httptest.NewRequest("POST", "/changes/batch", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if !tt.expectBatch {
				assert.Zero(t, mockEngine.BatchCalls())
				return
			}
			assert.Equal(t, 1, mockEngine.BatchCalls())
			assert.Equal(t, tt.expectedStopOnE, mockEngine.LastBatch.StopOnError)
		})
	}
}

func TestHandler_HandleRevertChange(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		revertResult   domain.RevertResult
		revertErr      error
		expectedStatus int
		expectRevert   bool
	}{
		{
			name:           "successful revert returns 200",
			body:           `{"connection_uri": "mongodb://x"}`,
			revertResult:   domain.RevertResult{ChangeID: "chg-1", Status: domain.StatusReverted},
			expectedStatus: http.StatusOK,
			expectRevert:   true,
		},
		{
			name:           "failed revert returns 422",
			body:           `{"connection_uri": "mongodb://x"}`,
			revertResult:   domain.RevertResult{ChangeID: "chg-1", Status: domain.StatusFailed, Message: "collection 'users' is not empty (3 documents), refusing to drop"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectRevert:   true,
		},
		{
			name:           "missing connection_uri returns 400",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "disallowed target returns 403",
			body:           `{"connection_uri": "mongodb://outside"}`,
			revertErr:      &domain.ConfigurationError{Reason: "connection URI is not allowed by the configured pattern"},
			expectedStatus: http.StatusForbidden,
			expectRevert:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockEngine := NewMockChangeEngine()
			mockEngine.RevertResult = tt.revertResult
			mockEngine.RevertErr = tt.revertErr
			handler := NewHandler(mockEngine, engine.NewMockAuditStore(), notify.NewDispatcher())
			router := newTestRouter(handler)

			req := httptest.NewRequest("POST", "/changes/chg-1/revert", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if !tt.expectRevert {
				assert.Zero(t, mockEngine.RevertCalls())
				return
			}
			assert.Equal(t, 1, mockEngine.RevertCalls())
			assert.Equal(t, "chg-1", mockEngine.LastChangeID)
		})
	}
}

func TestHandler_HandleListChanges(t *testing.T) {
	store := engine.NewMockAuditStore()
	now := time.Now().UTC()
	seed := []domain.AuditRecord{
		{ChangeID: "chg-1", ConnectionURI: "mongodb://x", Status: domain.StatusApplied, CreatedAt: now.Add(-3 * time.Hour)},
		{ChangeID: "chg-2", ConnectionURI: "mongodb://x", Status: domain.StatusReverted, CreatedAt: now.Add(-2 * time.Hour)},
		{ChangeID: "chg-3", ConnectionURI: "mongodb://x", Status: domain.StatusFailed, CreatedAt: now.Add(-1 * time.Hour)},
	}
	for i := range seed {
		rec := seed[i]
		require.NoError(t, store.Insert(context.Background(), &rec))
	}

	tests := []struct {
		name            string
		query           string
		expectedStatus  int
		expectedTotal   int64
		expectedChanges []string
	}{
		{
			name:            "default filter excludes reverted",
			query:           "?connection_uri=mongodb://x",
			expectedStatus:  http.StatusOK,
			expectedTotal:   2,
			expectedChanges: []string{"chg-3", "chg-1"},
		},
		{
			name:            "explicit status includes reverted",
			query:           "?connection_uri=mongodb://x&status=reverted",
			expectedStatus:  http.StatusOK,
			expectedTotal:   1,
			expectedChanges: []string{"chg-2"},
		},
		{
			name:            "comma separated statuses",
			query:           "?connection_uri=mongodb://x&status=failed,reverted",
			expectedStatus:  http.StatusOK,
			expectedTotal:   2,
			expectedChanges: []string{"chg-3", "chg-2"},
		},
		{
			name:           "missing connection_uri returns 400",
			query:          "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown status returns 400",
			query:          "?connection_uri=mongodb://x&status=bogus",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad since returns 400",
			query:          "?connection_uri=mongodb://x&since=yesterday",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(NewMockChangeEngine(), store, notify.NewDispatcher())
			router := newTestRouter(handler)

			req := httptest.NewRequest("GET", "/changes"+tt.query, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var response ListChangesResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedTotal, response.Total)

			var ids []string
			for _, rec := range response.Items {
				ids = append(ids, rec.ChangeID)
			}
			assert.Equal(t, tt.expectedChanges, ids, "results are ordered newest first")
		})
	}
}

func TestHandler_HandleGetChange(t *testing.T) {
	store := engine.NewMockAuditStore()
	rec := domain.AuditRecord{
		ChangeID:      "chg-1",
		ConnectionURI: "mongodb://x",
		Status:        domain.StatusApplied,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Insert(context.Background(), &rec))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{
			name:           "existing change is returned",
			path:           "/changes/chg-1?connection_uri=mongodb://x",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown change returns 404",
			path:           "/changes/nope?connection_uri=mongodb://x",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing connection_uri returns 400",
			path:           "/changes/chg-1",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(NewMockChangeEngine(), store, notify.NewDispatcher())
			router := newTestRouter(handler)

			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got domain.AuditRecord
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "chg-1", got.ChangeID)
			}
		})
	}
}

func TestHandler_HandleHealth(t *testing.T) {
	t.Run("healthy when audit store responds", func(t *testing.T) {
		handler := NewHandler(NewMockChangeEngine(), engine.NewMockAuditStore(), notify.NewDispatcher())
		router := newTestRouter(handler)

		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "reachable", response.Audit)
	})

	t.Run("degraded when audit store is down", func(t *testing.T) {
		store := engine.NewMockAuditStore()
		store.ListErr = errors.New("server selection timeout")
		handler := NewHandler(NewMockChangeEngine(), store, notify.NewDispatcher())
		router := newTestRouter(handler)

		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "degraded", response.Status)
		assert.Contains(t, response.Audit, "server selection timeout")
	})
}

func TestHandler_HandleExportChanges_NotConfigured(t *testing.T) {
	handler := NewHandler(NewMockChangeEngine(), engine.NewMockAuditStore(), notify.NewDispatcher())
	router := newTestRouter(handler)

	req := httptest.NewRequest("GET", "/changes/export?connection_uri=mongodb://x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

// stubExporter returns canned archive bytes
type stubExporter struct {
	data []byte
	err  error
}

func (s *stubExporter) ExportBuffer(ctx context.Context, uri string) ([]byte, error) {
	return s.data, s.err
}

func TestHandler_HandleExportChanges(t *testing.T) {
	handler := NewHandler(NewMockChangeEngine(), engine.NewMockAuditStore(), notify.NewDispatcher(),
		WithArchiveExporter(&stubExporter{data: []byte("MCHG-archive-bytes")}))
	router := newTestRouter(handler)

	req := httptest.NewRequest("GET", "/changes/export?connection_uri=mongodb://x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "MCHG-archive-bytes", w.Body.String())
}
