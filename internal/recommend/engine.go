package recommend

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/metrics"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/pkg/config"
	"github.com/discover-vnext/backend/pkg/logger"
)

// Engine computes ranked, explained document recommendations from a
// user's recent query history and the company's document corpus. Each
// request fits a fresh vector space; no fitted state is shared across
// requests. The cache is a pure accelerator: correctness never depends
// on it.
type Engine struct {
	store      Store
	cache      Cache
	cfg        config.RecommendConfig
	vectorizer *Vectorizer
	booster    *Booster

	now func() time.Time
}

func NewEngine(store Store, cache Cache, cfg config.RecommendConfig) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxQueryHistory <= 0 {
		cfg.MaxQueryHistory = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = 2 * time.Second
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = 300
	}

	return &Engine{
		store:      store,
		cache:      cache,
		cfg:        cfg,
		vectorizer: NewVectorizer(cfg.MaxFeatures, cfg.MaxDocFreq, cfg.NgramMax),
		booster:    NewBooster(cfg),
		now:        time.Now,
	}
}

// GetRecommendations returns the cached list when present, otherwise
// computes, caches, and returns a fresh one.
func (e *Engine) GetRecommendations(ctx context.Context, userID, companyID string, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	if cached, ok := e.readCache(ctx, userID, limit); ok {
		metrics.CacheHits.WithLabelValues("recommendations").Inc()
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("recommendations").Inc()

	return e.computeAndCache(ctx, userID, companyID, limit)
}

// Refresh invalidates the user's cache entry and recomputes
// synchronously.
func (e *Engine) Refresh(ctx context.Context, userID, companyID string, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	if err := e.Invalidate(ctx, userID); err != nil {
		logger.Warn("Failed to invalidate before refresh, recomputing anyway",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return e.computeAndCache(ctx, userID, companyID, limit)
}

// Invalidate hard-deletes the user's cached recommendation list. Called
// by the search flow immediately after a new query is persisted.
func (e *Engine) Invalidate(ctx context.Context, userID string) error {
	if e.cache == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()

	if err := e.cache.DeleteRecommendations(cctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate recommendations: %w", err)
	}
	return nil
}

func (e *Engine) computeAndCache(ctx context.Context, userID, companyID string, limit int) ([]Recommendation, error) {
	start := e.now()

	recs, mode, err := e.compute(userID, companyID, limit)
	if err != nil {
		return nil, err
	}

	metrics.RecommendationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.RecommendationsServed.WithLabelValues(mode).Add(float64(len(recs)))

	// Only similarity-based results are cached. Fallback and empty
	// results are cheap to recompute and should refresh as soon as the
	// user's first query lands.
	if mode == "similarity" {
		e.writeCache(ctx, userID, recs, limit)
	}

	return recs, nil
}

func (e *Engine) compute(userID, companyID string, limit int) ([]Recommendation, string, error) {
	queries, err := e.store.ListRecentQueries(userID, companyID, e.cfg.MaxQueryHistory)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load query history: %w", err)
	}

	documents, err := e.store.ListDocuments(companyID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load documents: %w", err)
	}

	if len(documents) == 0 {
		return []Recommendation{}, "empty", nil
	}

	if len(queries) == 0 {
		return fallback(documents, limit, e.cfg), "fallback", nil
	}

	candidates, ok := e.score(queries, documents)
	if !ok {
		return []Recommendation{}, "degenerate", nil
	}

	before := len(candidates)
	candidates = ensureDiversity(candidates, documents, e.cfg.DiversityInjectScore, e.cfg.ExcerptLimit)
	metrics.DiversityInjections.Add(float64(len(candidates) - before))

	return rank(candidates, limit), "similarity", nil
}

// score fits the vector space jointly over the synthetic query document
// and the corpus, then boosts and filters. Returns false when the
// vector space is degenerate, which the caller treats as zero
// recommendations rather than a failure.
func (e *Engine) score(queries []models.Query, documents []models.Document) ([]Recommendation, bool) {
	texts := make([]string, 0, len(documents)+1)
	texts = append(texts, buildQueryDocument(queries))
	for _, doc := range documents {
		texts = append(texts, Normalize(doc.Title+" "+doc.Content))
	}

	vectors, err := e.vectorizer.FitTransform(texts)
	if err != nil {
		logger.Warn("Vectorization failed, returning no recommendations", zap.Error(err))
		return nil, false
	}

	qc := newQueryContext(queries, e.now())
	queryVector := vectors[0]

	var candidates []Recommendation
	for i := range documents {
		doc := &documents[i]
		if doc.ID == "" {
			logger.Warn("Skipping document without identifier", zap.String("title", doc.Title))
			continue
		}

		base := cosine(queryVector, vectors[i+1])
		score := e.booster.Apply(base, doc, qc)
		if score <= e.cfg.InclusionThreshold {
			continue
		}

		candidates = append(candidates, Recommendation{
			ID:             doc.ID,
			Title:          doc.Title,
			Content:        excerpt(doc.Content, e.cfg.ExcerptLimit),
			Source:         doc.Source,
			Confidence:     doc.Confidence,
			RelevanceScore: score,
			Explanation:    explain(doc.Source, score, qc.recentQueries),
			CreatedAt:      doc.CreatedAt,
		})
	}

	return candidates, true
}

// buildQueryDocument concatenates the user's queries with exponential
// recency weighting: the i-th most recent query is repeated
// max(1, round(10*e^(-0.5*i))) times.
func buildQueryDocument(queries []models.Query) string {
	var parts []string
	for i, q := range queries {
		text := Normalize(q.QueryText)
		if text == "" {
			continue
		}

		repetitions := int(math.Max(1, math.Round(10*math.Exp(-0.5*float64(i)))))
		for r := 0; r < repetitions; r++ {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// cachedList pairs the recommendations with the limit they were
// computed under, so a hit written by a smaller request is not served
// truncated to a larger one.
type cachedList struct {
	Limit int              `json:"limit"`
	Items []Recommendation `json:"items"`
}

func (e *Engine) readCache(ctx context.Context, userID string, limit int) ([]Recommendation, bool) {
	if e.cache == nil {
		return nil, false
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()

	var entry cachedList
	hit, err := e.cache.GetRecommendations(cctx, userID, &entry)
	if err != nil {
		logger.Warn("Cache read failed, recomputing", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}

	// A stored list can satisfy this request when it was computed under
	// a limit at least this large, or when the corpus ran out before its
	// own limit did. Otherwise a recompute could return more.
	if limit > entry.Limit && len(entry.Items) >= entry.Limit {
		return nil, false
	}
	return entry.Items, true
}

func (e *Engine) writeCache(ctx context.Context, userID string, recs []Recommendation, limit int) {
	if e.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()

	entry := cachedList{Limit: limit, Items: recs}
	if err := e.cache.SetRecommendations(cctx, userID, entry, e.cfg.CacheTTL); err != nil {
		logger.Warn("Cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}
