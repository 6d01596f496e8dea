package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union\s+select|insert\s+into|update\s+\w+\s+set|delete\s+from|drop\s+table|exec\s*\(|<script|javascript:)`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
)

type Config struct {
	MaxQueryLength  int
	MaxDocumentSize int
	Logger          *zap.Logger
}

// Middleware screens search and document bodies before they reach the
// handlers: required fields, size limits, injection and XSS patterns.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != "POST" && c.Method() != "PUT" {
			return c.Next()
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/search") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			query, ok := req["query"].(string)
			if !ok || strings.TrimSpace(query) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query is required and must be a string",
				})
			}

			if len(query) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query exceeds maximum length",
				})
			}

			if sqlInjectionPattern.MatchString(query) || xssPattern.MatchString(query) {
				cfg.Logger.Warn("Suspicious query content rejected",
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid query content",
				})
			}
		}

		if strings.Contains(path, "/api/v1/documents") && strings.Contains(c.Get("Content-Type"), "application/json") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			content, _ := req["content"].(string)
			htmlContent, _ := req["html_content"].(string)
			if strings.TrimSpace(content) == "" && strings.TrimSpace(htmlContent) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Content is required",
				})
			}

			if len(content) > cfg.MaxDocumentSize || len(htmlContent) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}

			// Title may be omitted when html_content carries one.
			title, _ := req["title"].(string)
			if strings.TrimSpace(title) == "" && strings.TrimSpace(htmlContent) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Title is required",
				})
			}

			if xssPattern.MatchString(title) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid document title",
				})
			}
		}

		return c.Next()
	}
}
