package recommend

import (
	"sort"

	"github.com/discover-vnext/backend/internal/storage/models"
)

// ensureDiversity injects, for every source label present in the corpus
// but absent from the candidate list, that source's best representative
// at a fixed low-visibility score. Representatives are chosen by
// confidence descending, then creation time descending, and are skipped
// when the document is already present by identifier.
func ensureDiversity(candidates []Recommendation, docs []models.Document, injectScore float64, excerptLimit int) []Recommendation {
	presentSources := map[string]bool{}
	presentIDs := map[string]bool{}
	for _, rec := range candidates {
		presentSources[rec.Source] = true
		presentIDs[rec.ID] = true
	}

	best := map[string]*models.Document{}
	for i := range docs {
		doc := &docs[i]
		current, ok := best[doc.Source]
		if !ok || betterRepresentative(doc, current) {
			best[doc.Source] = doc
		}
	}

	var missing []string
	for source := range best {
		if !presentSources[source] {
			missing = append(missing, source)
		}
	}
	sort.Strings(missing)

	for _, source := range missing {
		doc := best[source]
		if presentIDs[doc.ID] {
			continue
		}
		candidates = append(candidates, Recommendation{
			ID:             doc.ID,
			Title:          doc.Title,
			Content:        excerpt(doc.Content, excerptLimit),
			Source:         doc.Source,
			Confidence:     doc.Confidence,
			RelevanceScore: injectScore,
			Explanation:    explainDiversity(doc.Source),
			CreatedAt:      doc.CreatedAt,
		})
		presentIDs[doc.ID] = true
	}

	return candidates
}

func betterRepresentative(a, b *models.Document) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// rank orders candidates by relevance score descending, ties keeping
// their original relative order, and truncates to limit.
func rank(candidates []Recommendation, limit int) []Recommendation {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
