package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/debate-go-api/internal/middleware"
)

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	limiter := middleware.RateLimit("debate-messages", 2, time.Minute)
	app.Post("/:user", func(c *fiber.Ctx) error {
		if c.Params("user") == "alice" {
			c.Locals("user_id", uint(1))
		} else {
			c.Locals("user_id", uint(2))
		}
		return c.Next()
	}, limiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	post := func(user string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/"+user, nil), -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, post("alice").StatusCode)
	require.Equal(t, fiber.StatusCreated, post("alice").StatusCode)

	limited := post("alice")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))

	require.Equal(t, fiber.StatusCreated, post("bob").StatusCode)
}
