package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/debate-go-api/internal/middleware"
)

const testSecret = "debate-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newAuthApp(mw fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/", mw, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"role":    c.Locals("user_role"),
		})
	})
	return app
}

func TestJWTProtectedPopulatesLocals(t *testing.T) {
	app := newAuthApp(middleware.JWTProtected(testSecret))
	token := signToken(t, jwt.MapClaims{"sub": "7", "role": "Admin", "exp": time.Now().Add(time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, uint(7), body.UserID)
	require.Equal(t, "admin", body.Role)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := newAuthApp(middleware.JWTProtected(testSecret))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app := newAuthApp(middleware.JWTProtected("other"))
	token := signToken(t, jwt.MapClaims{"sub": "7"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTOptionalAllowsAnonymous(t *testing.T) {
	app := newAuthApp(middleware.JWTOptional(testSecret))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	require.Nil(t, body["user_id"])
}

func TestJWTOptionalRejectsInvalidToken(t *testing.T) {
	app := newAuthApp(middleware.JWTOptional(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
