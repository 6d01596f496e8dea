package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/ingestion"
	"github.com/discover-vnext/backend/internal/metrics"
	"github.com/discover-vnext/backend/internal/storage/models"
	"github.com/discover-vnext/backend/internal/storage/sqlite"
	"github.com/discover-vnext/backend/pkg/logger"
)

type DocumentHandler struct {
	store *sqlite.Client
}

func NewDocumentHandler(store *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{store: store}
}

// CreateDocument stores a document. When html_content is provided the
// markup is stripped first and the cleaned text stored instead.
func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	var req struct {
		CompanyID       string  `json:"company_id"`
		Title           string  `json:"title"`
		Content         string  `json:"content"`
		HTMLContent     string  `json:"html_content"`
		Source          string  `json:"source"`
		Confidence      float64 `json:"confidence"`
		CreatedByUserID string  `json:"created_by_user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	if req.HTMLContent != "" {
		title, text, err := ingestion.CleanHTML(strings.NewReader(req.HTMLContent))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid HTML content",
			})
		}
		if req.Title == "" {
			req.Title = title
		}
		req.Content = text
	}

	if req.Title == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and content are required",
		})
	}

	if _, err := h.store.GetCompany(req.CompanyID); errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown company",
		})
	}

	if req.CreatedByUserID != "" {
		user, err := h.store.GetUser(req.CreatedByUserID)
		if errors.Is(err, sqlite.ErrNotFound) || (err == nil && user.CompanyID != req.CompanyID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown user",
			})
		}
		if err != nil {
			logger.Error("Failed to validate document creator", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create document",
			})
		}
	}

	if req.Source == "" {
		req.Source = "Manual Upload"
	}
	if req.Confidence <= 0 || req.Confidence > 1 {
		req.Confidence = 0.5
	}

	now := time.Now()
	doc := &models.Document{
		ID:              uuid.New().String(),
		CompanyID:       req.CompanyID,
		Title:           req.Title,
		Content:         req.Content,
		Source:          req.Source,
		Confidence:      req.Confidence,
		CreatedByUserID: req.CreatedByUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.InsertDocument(doc); err != nil {
		logger.Error("Failed to create document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	metrics.DocumentsIngested.WithLabelValues(doc.Source).Inc()

	return c.Status(fiber.StatusCreated).JSON(documentJSON(doc))
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	docs, err := h.store.ListDocuments(companyID)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	out := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		out = append(out, documentJSON(&docs[i]))
	}

	return c.JSON(fiber.Map{
		"documents": out,
		"count":     len(out),
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.store.GetDocument(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get document",
		})
	}

	return c.JSON(documentJSON(doc))
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	err := h.store.DeleteDocument(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	if err != nil {
		logger.Error("Failed to delete document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document deleted",
	})
}

func documentJSON(doc *models.Document) fiber.Map {
	return fiber.Map{
		"id":                 doc.ID,
		"company_id":         doc.CompanyID,
		"title":              doc.Title,
		"content":            doc.Content,
		"source":             doc.Source,
		"confidence":         doc.Confidence,
		"created_by_user_id": doc.CreatedByUserID,
		"created_at":         doc.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":         doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
