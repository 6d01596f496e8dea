package recommend

import (
	"sort"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/pkg/config"
	"github.com/discover-vnext/backend/pkg/utils"
)

// fallback ranks the company's newest documents with strictly
// decreasing baseline scores. Every fallback score sits below the range
// real similarity matches occupy, so one recorded query immediately
// dominates these on the next computation.
func fallback(docs []models.Document, limit int, cfg config.RecommendConfig) []Recommendation {
	sorted := make([]models.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	recs := make([]Recommendation, 0, len(sorted))
	for i, doc := range sorted {
		score := cfg.FallbackBase - cfg.FallbackStep*float64(i)
		if score < cfg.FallbackFloor {
			score = cfg.FallbackFloor
		}

		recs = append(recs, Recommendation{
			ID:             doc.ID,
			Title:          doc.Title,
			Content:        excerpt(doc.Content, cfg.ExcerptLimit),
			Source:         doc.Source,
			Confidence:     doc.Confidence,
			RelevanceScore: score,
			Explanation:    explainFallback(doc.Source),
			CreatedAt:      doc.CreatedAt,
		})
	}

	return recs
}

func excerpt(content string, limit int) string {
	if limit <= 0 {
		limit = 300
	}
	return utils.TruncateText(content, limit)
}
