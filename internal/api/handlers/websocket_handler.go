package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/internal/recommend"
	"github.com/discover-vnext/backend/internal/search"
	"github.com/discover-vnext/backend/pkg/logger"
)

type WebSocketHandler struct {
	searchEngine *search.Engine
	recommender  *recommend.Engine
}

func NewWebSocketHandler(searchEngine *search.Engine, recommender *recommend.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		searchEngine: searchEngine,
		recommender:  recommender,
	}
}

// HandleConnection runs the interactive search loop: each "query"
// message is answered in streamed chunks, followed by the user's
// refreshed recommendation list.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Query     string `json:"query"`
			UserID    string `json:"user_id"`
			CompanyID string `json:"company_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read failed", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if msg.Query == "" || msg.UserID == "" {
			h.sendError(c, "query and user_id are required")
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("user_id", msg.UserID))

		err = h.streamSearch(c, msg.Query, msg.UserID, msg.CompanyID)
		if err != nil {
			logger.Error("Failed to stream search response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamSearch(c *websocket.Conn, queryText, userID, companyID string) error {
	ctx := context.Background()

	h.send(c, "status", "Processing query...")

	resp, err := h.searchEngine.ProcessSearch(ctx, search.Request{
		UserID:     userID,
		CompanyID:  companyID,
		Query:      queryText,
		SaveAnswer: true,
	})
	if err != nil {
		return err
	}

	for _, chunk := range splitIntoChunks(resp.Answer) {
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	complete := map[string]interface{}{
		"type":       "complete",
		"query_id":   resp.QueryID,
		"title":      resp.Title,
		"latency_ms": resp.LatencyMS,
	}
	if resp.Intent != nil {
		complete["intent"] = resp.Intent.Category
	}
	if err := c.WriteJSON(complete); err != nil {
		return err
	}

	return h.pushRecommendations(ctx, c, userID, companyID)
}

// pushRecommendations sends the user's post-query recommendation list.
// The search flow already invalidated the cache, so this computes
// fresh.
func (h *WebSocketHandler) pushRecommendations(ctx context.Context, c *websocket.Conn, userID, companyID string) error {
	recs, err := h.recommender.GetRecommendations(ctx, userID, companyID, 0)
	if err != nil {
		logger.Warn("Failed to compute recommendations for push", zap.Error(err))
		return nil
	}

	return c.WriteJSON(map[string]interface{}{
		"type":            "recommendations",
		"recommendations": recs,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// splitIntoChunks breaks the answer into word-sized chunks, keeping
// trailing spaces so the client can concatenate directly.
func splitIntoChunks(text string) []string {
	words := strings.Fields(text)

	chunks := make([]string, 0, len(words))
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		chunks = append(chunks, word)
	}
	return chunks
}
