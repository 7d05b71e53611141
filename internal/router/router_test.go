package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/debate-go-api/internal/config"
	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/handler"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/router"
)

const secret = "router-secret"

type noopSweep struct{ runs int }

func (s *noopSweep) RunOnce(context.Context) (dto.SweepReport, error) {
	s.runs++
	return dto.SweepReport{}, nil
}

func (s *noopSweep) Run(context.Context, time.Duration) {}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRegister(t *testing.T) {
	cfg := config.Config{AppName: "Debate API", AppEnv: "test"}
	sweep := &noopSweep{}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AdminSweepHandler: handler.NewAdminSweepHandler(sweep, zerolog.Nop()),
		JWTMiddleware:     middleware.JWTProtected(secret),
		OptionalJWT:       middleware.JWTOptional(secret),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Debate API", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	sweepRequest := func(authorization string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v2/admin/sweep", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusUnauthorized, sweepRequest(""))
	require.Equal(t, fiber.StatusForbidden, sweepRequest(bearer(t, 7, "user")))
	require.Equal(t, fiber.StatusOK, sweepRequest(bearer(t, 1, "admin")))
	require.Equal(t, 1, sweep.runs)
}
