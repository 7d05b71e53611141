package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

// asUser mimics the JWT middleware for a signed-in caller.
func asUser(id uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		c.Locals("user_role", "user")
		return c.Next()
	}
}

func anonymous() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var body envelope
	decodeResponse(t, resp, &body)
	return resp, body
}
