package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/cache/redis"
	"github.com/discover-vnext/backend/internal/recommend"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

type RecommendationHandler struct {
	engine *recommend.Engine
	store  *sqlite.Client
	cache  *redis.Client
}

func NewRecommendationHandler(engine *recommend.Engine, store *sqlite.Client, cache *redis.Client) *RecommendationHandler {
	return &RecommendationHandler{
		engine: engine,
		store:  store,
		cache:  cache,
	}
}

func (h *RecommendationHandler) GetRecommendations(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	limit := c.QueryInt("limit")

	companyID, done, err := h.resolveCompany(c, userID)
	if done {
		return err
	}

	recs, err := h.engine.GetRecommendations(c.Context(), userID, companyID, limit)
	if err != nil {
		logger.Error("Failed to get recommendations", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get recommendations",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":         userID,
		"count":           len(recs),
		"recommendations": recs,
	})
}

func (h *RecommendationHandler) RefreshRecommendations(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	limit := c.QueryInt("limit")

	companyID, done, err := h.resolveCompany(c, userID)
	if done {
		return err
	}

	recs, err := h.engine.Refresh(c.Context(), userID, companyID, limit)
	if err != nil {
		logger.Error("Failed to refresh recommendations", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh recommendations",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":         userID,
		"count":           len(recs),
		"recommendations": recs,
	})
}

func (h *RecommendationHandler) CacheHealth(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(fiber.Map{
			"status": "disabled",
		})
	}

	if err := h.cache.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unreachable",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// resolveCompany takes the company scope from the query string, falling
// back to the user's own company. When done is true a response has
// already been written.
func (h *RecommendationHandler) resolveCompany(c *fiber.Ctx, userID string) (companyID string, done bool, err error) {
	if companyID := c.Query("company_id"); companyID != "" {
		return companyID, false, nil
	}

	user, err := h.store.GetUser(userID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return "", true, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		logger.Error("Failed to resolve user company", zap.Error(err))
		return "", true, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve user",
		})
	}

	return user.CompanyID, false, nil
}
