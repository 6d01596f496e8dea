package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/llm"
	"github.com/discover-vnext/backend/internal/metrics"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/config"
	"github.com/discover-vnext/backend/pkg/logger"
	"github.com/discover-vnext/backend/pkg/utils"
)

var ErrUnknownUser = errors.New("unknown user")

// Store is the storage surface the search flow needs.
type Store interface {
	GetUser(id string) (*models.User, error)
	ListRecentQueries(userID, companyID string, limit int) ([]models.Query, error)
	InsertQuery(q *models.Query) error
	InsertDocument(d *models.Document) error
}

// Cache covers query-history acceleration and intent caching.
type Cache interface {
	SetQueryHistory(ctx context.Context, userID string, queries interface{}, ttl time.Duration) error
	GetIntent(ctx context.Context, queryHash string, intent interface{}) (bool, error)
	SetIntent(ctx context.Context, queryHash string, intent interface{}, ttl time.Duration) error
}

// AnswerGenerator is the language-model surface the flow depends on.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, recentQueries []string) (*llm.Answer, error)
	DetectIntent(ctx context.Context, query string) *llm.Intent
}

// Invalidator drops a user's cached recommendations.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Request struct {
	UserID     string
	CompanyID  string
	Query      string
	SaveAnswer bool
}

type Response struct {
	QueryID    string
	Answer     string
	Title      string
	Intent     *llm.Intent
	DocumentID string
	CreatedAt  time.Time
	LatencyMS  int64
}

// Engine runs the search flow: validate the user, generate an answer,
// persist the query, optionally persist the answer as a document, and
// invalidate the user's recommendation cache so the next fetch reflects
// the new query.
type Engine struct {
	store       Store
	cache       Cache
	generator   AnswerGenerator
	invalidator Invalidator
	cfg         config.RecommendConfig
}

func NewEngine(store Store, cache Cache, generator AnswerGenerator, invalidator Invalidator, cfg config.RecommendConfig) *Engine {
	if cfg.MaxQueryHistory <= 0 {
		cfg.MaxQueryHistory = 10
	}
	if cfg.QueryHistoryTTL <= 0 {
		cfg.QueryHistoryTTL = 24 * time.Hour
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 6 * time.Hour
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = 2 * time.Second
	}

	return &Engine{
		store:       store,
		cache:       cache,
		generator:   generator,
		invalidator: invalidator,
		cfg:         cfg,
	}
}

func (e *Engine) ProcessSearch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	user, err := e.store.GetUser(req.UserID)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to validate user: %w", err)
	}

	companyID := req.CompanyID
	if companyID == "" {
		companyID = user.CompanyID
	}
	if companyID != user.CompanyID {
		return nil, ErrUnknownUser
	}

	recent, err := e.store.ListRecentQueries(req.UserID, companyID, e.cfg.MaxQueryHistory)
	if err != nil {
		logger.Warn("Failed to load query history for context", zap.Error(err))
	}
	recentTexts := make([]string, 0, len(recent))
	for _, q := range recent {
		recentTexts = append(recentTexts, q.QueryText)
	}

	intent := e.detectIntent(ctx, req.Query)

	answer, genErr := e.generator.GenerateAnswer(ctx, req.Query, recentTexts)
	if genErr != nil {
		logger.Error("Answer generation failed, recording query anyway", zap.Error(genErr))
		metrics.SearchTotal.WithLabelValues("llm_error").Inc()
	}

	now := time.Now()
	query := &models.Query{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		CompanyID: companyID,
		QueryText: req.Query,
		CreatedAt: now,
	}
	if intent != nil {
		query.Intent = intent.Category
	}
	if answer != nil {
		query.Answer = answer.Text
	}

	if err := e.store.InsertQuery(query); err != nil {
		return nil, fmt.Errorf("failed to persist query: %w", err)
	}

	// The query history just changed, so the cached recommendation list
	// is stale. Delete it before anything else can read it.
	if e.invalidator != nil {
		if err := e.invalidator.Invalidate(ctx, req.UserID); err != nil {
			logger.Warn("Failed to invalidate recommendation cache", zap.String("user_id", req.UserID), zap.Error(err))
		}
	}

	e.refreshQueryHistory(ctx, req.UserID, companyID)

	resp := &Response{
		QueryID:   query.ID,
		Intent:    intent,
		CreatedAt: now,
	}

	if answer != nil {
		resp.Answer = answer.Text
		resp.Title = answer.Title
		metrics.LLMTokensUsed.WithLabelValues("chat", "prompt").Add(float64(answer.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues("chat", "completion").Add(float64(answer.Usage.CompletionTokens))

		if req.SaveAnswer {
			doc := &models.Document{
				ID:              uuid.New().String(),
				CompanyID:       companyID,
				Title:           answer.Title,
				Content:         answer.Text,
				Source:          "LLM Generated",
				Confidence:      0.7,
				CreatedByUserID: req.UserID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := e.store.InsertDocument(doc); err != nil {
				logger.Warn("Failed to persist generated answer as document", zap.Error(err))
			} else {
				resp.DocumentID = doc.ID
				metrics.DocumentsIngested.WithLabelValues("LLM Generated").Inc()
			}
		}
	}

	resp.LatencyMS = time.Since(start).Milliseconds()

	status := "ok"
	if genErr != nil {
		status = "no_answer"
	}
	metrics.SearchTotal.WithLabelValues(status).Inc()
	metrics.SearchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	logger.Info("Search processed",
		zap.String("query_id", query.ID),
		zap.String("user_id", req.UserID),
		zap.Int64("latency_ms", resp.LatencyMS),
	)

	return resp, nil
}

// detectIntent consults the intent cache keyed by query hash before
// calling the model. Intent is advisory; failures never block search.
func (e *Engine) detectIntent(ctx context.Context, query string) *llm.Intent {
	hash := utils.HashString(query)

	if e.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
		var cached llm.Intent
		hit, err := e.cache.GetIntent(cctx, hash, &cached)
		cancel()
		if err == nil && hit {
			metrics.CacheHits.WithLabelValues("intent").Inc()
			return &cached
		}
		metrics.CacheMisses.WithLabelValues("intent").Inc()
	}

	intent := e.generator.DetectIntent(ctx, query)

	if e.cache != nil && intent != nil {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
		if err := e.cache.SetIntent(cctx, hash, intent, e.cfg.IntentTTL); err != nil {
			logger.Debug("Failed to cache intent", zap.Error(err))
		}
		cancel()
	}

	return intent
}

func (e *Engine) refreshQueryHistory(ctx context.Context, userID, companyID string) {
	if e.cache == nil {
		return
	}

	queries, err := e.store.ListRecentQueries(userID, companyID, e.cfg.MaxQueryHistory)
	if err != nil {
		logger.Debug("Failed to reload query history", zap.Error(err))
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CacheTimeout)
	defer cancel()

	if err := e.cache.SetQueryHistory(cctx, userID, queries, e.cfg.QueryHistoryTTL); err != nil {
		logger.Debug("Failed to cache query history", zap.Error(err))
	}
}
