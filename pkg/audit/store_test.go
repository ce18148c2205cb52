package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

func TestBuildListFilter(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   domain.ListFilter
		expected bson.M
	}{
		{
			name:   "default excludes reverted",
			filter: domain.ListFilter{},
			expected: bson.M{
				"connection_uri": "mongodb://x",
				"status":         bson.M{"$ne": domain.StatusReverted},
			},
		},
		{
			name: "explicit statuses override the default and may include reverted",
			filter: domain.ListFilter{
				Statuses: []domain.Status{domain.StatusReverted, domain.StatusFailed},
			},
			expected: bson.M{
				"connection_uri": "mongodb://x",
				"status":         bson.M{"$in": []domain.Status{domain.StatusReverted, domain.StatusFailed}},
			},
		},
		{
			name:   "since bounds creation time",
			filter: domain.ListFilter{Since: &since},
			expected: bson.M{
				"connection_uri": "mongodb://x",
				"status":         bson.M{"$ne": domain.StatusReverted},
				"created_at":     bson.M{"$gte": since},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildListFilter("mongodb://x", tt.filter))
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, domain.DefaultListLimit, clampLimit(0))
	assert.Equal(t, domain.DefaultListLimit, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, domain.MaxListLimit, clampLimit(5000))
}
