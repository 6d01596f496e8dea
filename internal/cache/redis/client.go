package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/discover-vnext/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func recommendationsKey(userID string) string {
	return fmt.Sprintf("user:%s:recommendations", userID)
}

func queryHistoryKey(userID string) string {
	return fmt.Sprintf("user:%s:query_history", userID)
}

func intentKey(queryHash string) string {
	return fmt.Sprintf("intent:%s", queryHash)
}

// SetRecommendations stores the user's recommendation list as a single
// key write. The list is marshaled whole; a failed write leaves no
// partial state behind.
func (c *Client) SetRecommendations(ctx context.Context, userID string, recs interface{}, ttl time.Duration) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	err = c.client.Set(ctx, recommendationsKey(userID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set recommendations cache: %w", err)
	}

	logger.Debug("Recommendations cached", zap.String("user_id", userID), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetRecommendations(ctx context.Context, userID string, recs interface{}) (bool, error) {
	data, err := c.client.Get(ctx, recommendationsKey(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get recommendations cache: %w", err)
	}

	err = json.Unmarshal(data, recs)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}

	logger.Debug("Recommendations cache hit", zap.String("user_id", userID))
	return true, nil
}

func (c *Client) DeleteRecommendations(ctx context.Context, userID string) error {
	err := c.client.Del(ctx, recommendationsKey(userID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete recommendations cache: %w", err)
	}

	logger.Debug("Recommendations cache deleted", zap.String("user_id", userID))
	return nil
}

func (c *Client) SetQueryHistory(ctx context.Context, userID string, queries interface{}, ttl time.Duration) error {
	data, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("failed to marshal query history: %w", err)
	}

	err = c.client.Set(ctx, queryHistoryKey(userID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set query history cache: %w", err)
	}

	return nil
}

func (c *Client) GetQueryHistory(ctx context.Context, userID string, queries interface{}) (bool, error) {
	data, err := c.client.Get(ctx, queryHistoryKey(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get query history cache: %w", err)
	}

	err = json.Unmarshal(data, queries)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal query history: %w", err)
	}

	return true, nil
}

func (c *Client) SetIntent(ctx context.Context, queryHash string, intent interface{}, ttl time.Duration) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	err = c.client.Set(ctx, intentKey(queryHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set intent cache: %w", err)
	}

	return nil
}

func (c *Client) GetIntent(ctx context.Context, queryHash string, intent interface{}) (bool, error) {
	data, err := c.client.Get(ctx, intentKey(queryHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get intent cache: %w", err)
	}

	err = json.Unmarshal(data, intent)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal intent: %w", err)
	}

	return true, nil
}

// InvalidateUser hard-deletes every cached entry for the user.
func (c *Client) InvalidateUser(ctx context.Context, userID string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("user:%s:*", userID), 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Debug("User cache invalidated", zap.String("user_id", userID))
	return nil
}
