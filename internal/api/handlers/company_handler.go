package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

type CompanyHandler struct {
	store *sqlite.Client
}

func NewCompanyHandler(store *sqlite.Client) *CompanyHandler {
	return &CompanyHandler{store: store}
}

func (h *CompanyHandler) CreateCompany(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Industry string `json:"industry"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	if _, err := h.store.FindCompanyByName(req.Name); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Company already exists",
		})
	}

	company := &models.Company{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Industry:  req.Industry,
		CreatedAt: time.Now(),
	}

	if err := h.store.InsertCompany(company); err != nil {
		logger.Error("Failed to create company", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create company",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(companyJSON(company))
}

func (h *CompanyHandler) ListCompanies(c *fiber.Ctx) error {
	companies, err := h.store.ListCompanies()
	if err != nil {
		logger.Error("Failed to list companies", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list companies",
		})
	}

	out := make([]fiber.Map, 0, len(companies))
	for i := range companies {
		out = append(out, companyJSON(&companies[i]))
	}

	return c.JSON(fiber.Map{
		"companies": out,
		"count":     len(out),
	})
}

func (h *CompanyHandler) GetCompany(c *fiber.Ctx) error {
	company, err := h.store.GetCompany(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Company not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get company", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get company",
		})
	}

	return c.JSON(companyJSON(company))
}

func (h *CompanyHandler) DeleteCompany(c *fiber.Ctx) error {
	err := h.store.DeleteCompany(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Company not found",
		})
	}
	if err != nil {
		logger.Error("Failed to delete company", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete company",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Company deleted",
	})
}

func companyJSON(company *models.Company) fiber.Map {
	return fiber.Map{
		"id":         company.ID,
		"name":       company.Name,
		"industry":   company.Industry,
		"created_at": company.CreatedAt.UTC().Format(time.RFC3339),
	}
}
