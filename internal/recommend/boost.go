package recommend

import (
	"math"
	"strings"
	"time"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/pkg/config"
)

// queryContext is the shared input every boost reads: word sets derived
// from the user's recent queries plus the evaluation time.
type queryContext struct {
	latestWords   map[string]bool
	recentWords   map[string]bool
	recentQueries []string
	now           time.Time
}

func newQueryContext(queries []models.Query, now time.Time) *queryContext {
	qc := &queryContext{
		latestWords: map[string]bool{},
		recentWords: map[string]bool{},
		now:         now,
	}

	for i, q := range queries {
		qc.recentQueries = append(qc.recentQueries, q.QueryText)
		if i == 0 {
			qc.latestWords = wordSet(q.QueryText)
		}
		if i < 3 {
			for w := range wordSet(q.QueryText) {
				qc.recentWords[w] = true
			}
		}
	}

	return qc
}

type boostFunc func(doc *models.Document, qc *queryContext) float64

// Booster applies a pipeline of independent, non-negative, individually
// capped adjustments on top of the base similarity score. The summed
// score is capped at 1.0.
type Booster struct {
	cfg    config.RecommendConfig
	common map[string]bool
	boosts []boostFunc
}

func NewBooster(cfg config.RecommendConfig) *Booster {
	b := &Booster{
		cfg:    cfg,
		common: map[string]bool{},
	}
	for _, s := range cfg.CommonSources {
		b.common[s] = true
	}

	b.boosts = []boostFunc{
		b.titleRelevance,
		b.keywordDensity,
		b.confidenceQuality,
		b.semanticAlignment,
		b.sourceDiversity,
		b.recency,
	}

	return b
}

func (b *Booster) Apply(base float64, doc *models.Document, qc *queryContext) float64 {
	score := base
	for _, boost := range b.boosts {
		score += boost(doc, qc)
	}
	return math.Min(score, 1.0)
}

// titleRelevance scores the fraction of the latest query's distinct
// words present in the document title.
func (b *Booster) titleRelevance(doc *models.Document, qc *queryContext) float64 {
	if len(qc.latestWords) == 0 {
		return 0
	}

	titleWords := wordSet(doc.Title)
	matched := 0
	for w := range qc.latestWords {
		if titleWords[w] {
			matched++
		}
	}

	return float64(matched) / float64(len(qc.latestWords)) * b.cfg.TitleBoostMax
}

// keywordDensity scores how much of the document's text consists of
// the latest query's words.
func (b *Booster) keywordDensity(doc *models.Document, qc *queryContext) float64 {
	if len(qc.latestWords) == 0 {
		return 0
	}

	tokens := strings.Fields(Normalize(doc.Title + " " + doc.Content))
	if len(tokens) == 0 {
		return 0
	}

	matched := 0
	for _, tok := range tokens {
		if qc.latestWords[strings.Trim(tok, ".-")] {
			matched++
		}
	}

	density := float64(matched) / float64(len(tokens))
	return math.Min(density*2, b.cfg.KeywordDensityMax)
}

// confidenceQuality rewards above-average document confidence plus a
// small bonus for substantial content. Never penalizes.
func (b *Booster) confidenceQuality(doc *models.Document, qc *queryContext) float64 {
	boost := (doc.Confidence - 0.5) * b.cfg.ConfidenceWeight
	boost += math.Min(float64(len(doc.Content))/10000, b.cfg.LengthBonusMax)
	return math.Max(boost, 0)
}

// semanticAlignment scores Jaccard overlap between the word sets of
// the 3 most recent queries and the document text.
func (b *Booster) semanticAlignment(doc *models.Document, qc *queryContext) float64 {
	if len(qc.recentWords) == 0 {
		return 0
	}

	docWords := wordSet(doc.Title + " " + doc.Content)
	if len(docWords) == 0 {
		return 0
	}

	intersection := 0
	for w := range qc.recentWords {
		if docWords[w] {
			intersection++
		}
	}
	union := len(qc.recentWords) + len(docWords) - intersection

	jaccard := float64(intersection) / float64(union)
	return math.Min(jaccard*3, b.cfg.SemanticAlignMax)
}

func (b *Booster) sourceDiversity(doc *models.Document, qc *queryContext) float64 {
	if b.common[doc.Source] {
		return 0
	}
	return b.cfg.SourceDiversityBonus
}

func (b *Booster) recency(doc *models.Document, qc *queryContext) float64 {
	days := qc.now.Sub(doc.CreatedAt).Hours() / 24
	if days < 0 || days >= 7 {
		return 0
	}
	return (7 - days) / 7 * b.cfg.RecencyBonusMax
}
