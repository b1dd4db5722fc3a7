package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeAllowsBurstThenDenies(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, WindowDuration: time.Minute})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.take("client-a"), "request %d within burst", i+1)
	}
	assert.False(t, rl.take("client-a"))
	assert.True(t, rl.take("client-b"), "keys have independent budgets")
}

func TestTakeChargesConfiguredCost(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, WindowDuration: time.Minute, TokensPerRequest: 2})
	defer rl.Stop()

	assert.True(t, rl.take("client-a"))
	assert.False(t, rl.take("client-a"), "one token left, cost is two")
}

func TestMiddlewareKeysByClientHeader(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: time.Minute})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	doGet := func(clientID string) int {
		req := httptest.NewRequest("GET", "/", nil)
		if clientID != "" {
			req.Header.Set("X-Client-ID", clientID)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, doGet("alpha"))
	assert.Equal(t, fiber.StatusTooManyRequests, doGet("alpha"))
	assert.Equal(t, fiber.StatusOK, doGet("beta"))
}
