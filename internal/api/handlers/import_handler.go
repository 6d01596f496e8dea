package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/ingestion"
	"github.com/discover-vnext/backend/pkg/logger"
)

type ImportHandler struct {
	importer *ingestion.Importer
}

func NewImportHandler(importer *ingestion.Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// UploadWorkbook imports an activity-report workbook uploaded as
// multipart form field "file".
func (h *ImportHandler) UploadWorkbook(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Workbook file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded workbook", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read workbook",
		})
	}
	defer file.Close()

	result, err := h.importer.ImportWorkbook(file)
	if err != nil {
		logger.Error("Failed to import workbook", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid workbook file",
		})
	}

	return c.JSON(result)
}

func (h *ImportHandler) ValidateWorkbook(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Workbook file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded workbook", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read workbook",
		})
	}
	defer file.Close()

	report, err := h.importer.ValidateWorkbook(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid workbook file",
		})
	}

	return c.JSON(report)
}

func (h *ImportHandler) GetInsights(c *fiber.Ctx) error {
	stats, err := h.importer.Insights()
	if err != nil {
		logger.Error("Failed to compute insights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute insights",
		})
	}

	top := make([]fiber.Map, 0, len(stats.TopCompanies))
	for _, entry := range stats.TopCompanies {
		top = append(top, fiber.Map{
			"company_id":   entry.CompanyID,
			"company_name": entry.CompanyName,
			"query_count":  entry.QueryCount,
		})
	}

	return c.JSON(fiber.Map{
		"companies":        stats.Companies,
		"users":            stats.Users,
		"documents":        stats.Documents,
		"queries":          stats.Queries,
		"queries_last_24h": stats.QueriesLast24,
		"top_companies":    top,
	})
}
