package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/cache/redis"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

type UserHandler struct {
	store *sqlite.Client
	cache *redis.Client
}

func NewUserHandler(store *sqlite.Client, cache *redis.Client) *UserHandler {
	return &UserHandler{store: store, cache: cache}
}

func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"company_id"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		Role      string `json:"role"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Name == "" || req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id, email and name are required",
		})
	}

	if _, err := h.store.GetCompany(req.CompanyID); errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown company",
		})
	}

	if _, err := h.store.FindUserByEmail(req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "User already exists",
		})
	}

	user := &models.User{
		ID:        uuid.New().String(),
		CompanyID: req.CompanyID,
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		CreatedAt: time.Now(),
	}

	if err := h.store.InsertUser(user); err != nil {
		logger.Error("Failed to create user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(userJSON(user))
}

func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	users, err := h.store.ListUsers(companyID)
	if err != nil {
		logger.Error("Failed to list users", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list users",
		})
	}

	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		out = append(out, userJSON(&users[i]))
	}

	return c.JSON(fiber.Map{
		"users": out,
		"count": len(out),
	})
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.store.GetUser(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get user",
		})
	}

	return c.JSON(userJSON(user))
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	userID := c.Params("id")

	err := h.store.DeleteUser(userID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}
	if err != nil {
		logger.Error("Failed to delete user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete user",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateUser(c.Context(), userID); err != nil {
			logger.Warn("Failed to invalidate cache for deleted user", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"message": "User deleted",
	})
}

func userJSON(user *models.User) fiber.Map {
	return fiber.Map{
		"id":         user.ID,
		"company_id": user.CompanyID,
		"email":      user.Email,
		"name":       user.Name,
		"role":       user.Role,
		"created_at": user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
