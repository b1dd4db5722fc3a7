package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sourav19o7/ppe-detector-sub000/internal/metrics"
	"github.com/Sourav19o7/ppe-detector-sub000/pkg/logger"
)

type Client struct {
	client          *redis.Client
	mineCacheTTL    time.Duration
	alertMarkExpiry time.Duration
}

func NewClient(host string, port int, password string, db int, mineCacheTTL time.Duration) (*Client, error) {
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

	return &Client{
		client:          client,
		mineCacheTTL:    mineCacheTTL,
		alertMarkExpiry: 48 * time.Hour,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) GetMineCompliance(ctx context.Context, mineID string) (float64, bool, error) {
	data, err := c.client.Get(ctx, mineKey(mineID)).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("mine_compliance").Inc()
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get mine compliance cache: %w", err)
	}

	rate, err := strconv.ParseFloat(data, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse cached compliance rate: %w", err)
	}

	metrics.CacheHits.WithLabelValues("mine_compliance").Inc()
	logger.Debug("Mine compliance cache hit", zap.String("mine_id", mineID))
	return rate, true, nil
}

func (c *Client) SetMineCompliance(ctx context.Context, mineID string, rate float64) error {
	err := c.client.Set(ctx, mineKey(mineID), strconv.FormatFloat(rate, 'f', -1, 64), c.mineCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set mine compliance cache: %w", err)
	}
	return nil
}

// MarkAlertSent claims the per-worker per-UTC-day alert slot. It returns true
// when this caller won the slot and false when an alert was already recorded
// for the key.
func (c *Client) MarkAlertSent(ctx context.Context, dedupKey string) (bool, error) {
	won, err := c.client.SetNX(ctx, dedupKey, time.Now().UTC().Format(time.RFC3339), c.alertMarkExpiry).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark alert sent: %w", err)
	}
	return won, nil
}

// ClearAlertMark releases a claimed slot, used when persisting the alert
// failed after the slot was won.
func (c *Client) ClearAlertMark(ctx context.Context, dedupKey string) error {
	if err := c.client.Del(ctx, dedupKey).Err(); err != nil {
		return fmt.Errorf("failed to clear alert mark: %w", err)
	}
	return nil
}

func mineKey(mineID string) string {
	return fmt.Sprintf("mine_compliance:%s", mineID)
}
