package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/pkg/circuitbreaker"
	"github.com/discover-vnext/backend/pkg/logger"
	"github.com/discover-vnext/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Answer struct {
	Text  string
	Title string
	Usage Usage
}

type Intent struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	timeout := time.Duration(timeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateAnswer produces an answer for the query, using the user's
// recent queries as conversational context, plus a short title suitable
// for storing the answer as a document.
func (c *Client) GenerateAnswer(ctx context.Context, query string, recentQueries []string) (*Answer, error) {
	systemPrompt := `You are a workplace knowledge assistant. Answer the user's question clearly and concisely, drawing on general business and workplace knowledge. Keep answers under 300 words.`

	var sb strings.Builder
	if len(recentQueries) > 0 {
		sb.WriteString("Recent questions from this user:\n")
		for _, q := range recentQueries {
			sb.WriteString("- ")
			sb.WriteString(q)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   sb.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	title, err := c.GenerateTitle(ctx, query)
	if err != nil {
		logger.Warn("Failed to generate title, deriving from query", zap.Error(err))
		title = deriveTitle(query)
	}

	logger.Info("Answer generated",
		zap.String("query", query),
		zap.Int("answer_length", len(resp.Content)),
	)

	return &Answer{
		Text:  resp.Content,
		Title: title,
		Usage: resp.Usage,
	}, nil
}

func (c *Client) GenerateTitle(ctx context.Context, query string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: `Generate a short, descriptive title (at most 8 words) for a document answering the given question. Return only the title.`,
		UserPrompt:   query,
		Temperature:  0.3,
		MaxTokens:    30,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}

	title := strings.Trim(strings.TrimSpace(resp.Content), `"`)
	if title == "" {
		return deriveTitle(query), nil
	}

	return title, nil
}

// DetectIntent classifies a query into a coarse category with salient
// keywords. Falls back to keyword matching when the model call fails,
// so intent detection never blocks the search flow.
func (c *Client) DetectIntent(ctx context.Context, query string) *Intent {
	systemPrompt := `Classify the workplace question into one of: policy, process, technical, people, finance, general.
Return JSON only: {"category": "...", "keywords": ["...", "..."]}`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   query,
		Temperature:  0.1,
		MaxTokens:    100,
	})
	if err != nil {
		logger.Debug("Intent detection via LLM failed, using keyword fallback", zap.Error(err))
		return fallbackIntent(query)
	}

	var intent Intent
	content := strings.TrimSpace(resp.Content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(content), &intent); err != nil || intent.Category == "" {
		return fallbackIntent(query)
	}

	return &intent
}

var intentCategories = []struct {
	category string
	keywords []string
}{
	{"policy", []string{"policy", "policies", "rule", "rules", "allowed", "permitted", "compliance"}},
	{"process", []string{"process", "procedure", "workflow", "steps", "how do i", "how to"}},
	{"technical", []string{"technical", "system", "software", "deploy", "server", "code", "bug"}},
	{"people", []string{"team", "manager", "employee", "hiring", "onboarding", "human resources"}},
	{"finance", []string{"budget", "expense", "invoice", "cost", "reimbursement", "salary"}},
}

func fallbackIntent(query string) *Intent {
	lower := strings.ToLower(query)

	category := "general"
	for _, entry := range intentCategories {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				category = entry.category
				break
			}
		}
		if category != "general" {
			break
		}
	}

	seen := map[string]bool{}
	var keywords []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,?!\"'")
		if len(word) > 4 && !seen[word] {
			seen[word] = true
			keywords = append(keywords, word)
		}
	}
	sort.Strings(keywords)
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	return &Intent{Category: category, Keywords: keywords}
}

func deriveTitle(query string) string {
	words := strings.Fields(query)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Trim(strings.Join(words, " "), "?!. ")
}
