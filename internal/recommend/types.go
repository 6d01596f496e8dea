package recommend

import (
	"context"
	"time"

	"github.com/discover-vnext/backend/internal/storage/models"
)

// Recommendation is a transient, derived value. It is never persisted;
// it lives for the duration of a request or a cache entry.
type Recommendation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Source         string    `json:"source"`
	Confidence     float64   `json:"confidence"`
	RelevanceScore float64   `json:"relevance_score"`
	Explanation    string    `json:"explanation"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the read-only storage surface the engine depends on.
type Store interface {
	ListRecentQueries(userID, companyID string, limit int) ([]models.Query, error)
	ListDocuments(companyID string) ([]models.Document, error)
}

// Cache holds the per-user recommendation list. Implementations must
// round-trip the stored value exactly and delete entries atomically
// per key.
type Cache interface {
	GetRecommendations(ctx context.Context, userID string, recs interface{}) (bool, error)
	SetRecommendations(ctx context.Context, userID string, recs interface{}, ttl time.Duration) error
	DeleteRecommendations(ctx context.Context, userID string) error
}
