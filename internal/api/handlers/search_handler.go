package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/cache/redis"
	"github.com/discover-vnext/backend/internal/recommend"
	"github.com/discover-vnext/backend/internal/search"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

type SearchHandler struct {
	engine      *search.Engine
	store       *sqlite.Client
	recommender *recommend.Engine
	cache       *redis.Client
	maxHistory  int
}

func NewSearchHandler(engine *search.Engine, store *sqlite.Client, recommender *recommend.Engine, cache *redis.Client, maxHistory int) *SearchHandler {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &SearchHandler{
		engine:      engine,
		store:       store,
		recommender: recommender,
		cache:       cache,
		maxHistory:  maxHistory,
	}
}

func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		UserID     string `json:"user_id"`
		CompanyID  string `json:"company_id"`
		Query      string `json:"query"`
		SaveAnswer *bool  `json:"save_answer"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and query are required",
		})
	}

	saveAnswer := true
	if req.SaveAnswer != nil {
		saveAnswer = *req.SaveAnswer
	}

	resp, err := h.engine.ProcessSearch(c.Context(), search.Request{
		UserID:     req.UserID,
		CompanyID:  req.CompanyID,
		Query:      req.Query,
		SaveAnswer: saveAnswer,
	})
	if errors.Is(err, search.ErrUnknownUser) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		logger.Error("Failed to process search", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process search",
		})
	}

	out := fiber.Map{
		"query_id":   resp.QueryID,
		"answer":     resp.Answer,
		"title":      resp.Title,
		"created_at": resp.CreatedAt.UTC().Format(time.RFC3339),
		"latency_ms": resp.LatencyMS,
	}
	if resp.Intent != nil {
		out["intent"] = fiber.Map{
			"category": resp.Intent.Category,
			"keywords": resp.Intent.Keywords,
		}
	}
	if resp.DocumentID != "" {
		out["document_id"] = resp.DocumentID
	}

	return c.JSON(out)
}

func (h *SearchHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	companyID := c.Query("company_id")
	if userID == "" || companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id and company_id are required",
		})
	}

	var queries []models.Query
	cached := false
	if h.cache != nil {
		hit, err := h.cache.GetQueryHistory(c.Context(), userID, &queries)
		if err != nil {
			logger.Warn("Query history cache read failed", zap.Error(err))
		}
		cached = err == nil && hit
	}

	if !cached {
		var err error
		queries, err = h.store.ListRecentQueries(userID, companyID, h.maxHistory)
		if err != nil {
			logger.Error("Failed to get query history", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to get query history",
			})
		}
	}

	out := make([]fiber.Map, 0, len(queries))
	for _, q := range queries {
		out = append(out, fiber.Map{
			"id":         q.ID,
			"query":      q.QueryText,
			"answer":     q.Answer,
			"intent":     q.Intent,
			"created_at": q.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"history": out,
		"count":   len(out),
	})
}

// DeleteQueryHistory removes the user's query records and drops every
// cached entry for the user, since the history those entries were
// built from is gone.
func (h *SearchHandler) DeleteQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	deleted, err := h.store.DeleteUserQueries(userID)
	if err != nil {
		logger.Error("Failed to delete query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete query history",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateUser(c.Context(), userID); err != nil {
			logger.Warn("Failed to invalidate user cache after history delete", zap.Error(err))
		}
	} else if h.recommender != nil {
		if err := h.recommender.Invalidate(c.Context(), userID); err != nil {
			logger.Warn("Failed to invalidate recommendations after history delete", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"deleted": deleted,
	})
}
