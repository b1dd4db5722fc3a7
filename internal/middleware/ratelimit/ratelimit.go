// Package ratelimit applies a per-caller token bucket to the API surface.
package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	sweepEvery = 5 * time.Minute
	idleEvict  = 10 * time.Minute
)

type Config struct {
	MaxRequestsPerMinute int
	WindowDuration       time.Duration

	// TokensPerRequest lets expensive routes (batch predictions, training)
	// consume more of a caller's budget than single lookups.
	TokensPerRequest int

	Logger *zap.Logger
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter keys callers by X-Client-ID, falling back to client IP.
// Tokens refill continuously at MaxRequestsPerMinute per WindowDuration.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity  float64
	perSecond float64
	cost      float64
	logger    *zap.Logger
	stopSweep chan struct{}
	sweepOnce sync.Once
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 60
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = time.Minute
	}
	if cfg.TokensPerRequest <= 0 {
		cfg.TokensPerRequest = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		buckets:   make(map[string]*bucket),
		capacity:  float64(cfg.MaxRequestsPerMinute),
		perSecond: float64(cfg.MaxRequestsPerMinute) / cfg.WindowDuration.Seconds(),
		cost:      float64(cfg.TokensPerRequest),
		logger:    cfg.Logger,
		stopSweep: make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("X-Client-ID")
		if key == "" {
			key = c.IP()
		}

		if !rl.take(key) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

func (rl *RateLimiter) take(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.lastSeen).Seconds() * rl.perSecond
		if b.tokens > rl.capacity {
			b.tokens = rl.capacity
		}
		b.lastSeen = now
	}

	if b.tokens < rl.cost {
		return false
	}
	b.tokens -= rl.cost
	return true
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopSweep:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idleEvict)
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.sweepOnce.Do(func() { close(rl.stopSweep) })
}
