package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("secret", utils.NopLogger()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := map[string]int{
		"":              http.StatusUnauthorized,
		"Bearer wrong":  http.StatusUnauthorized,
		"Bearer secret": http.StatusOK,
		"secret":        http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, status(t, app, req), header)
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware(utils.NopLogger()))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user":    c.Locals(LocalUserID),
			"premium": c.Locals(LocalPremium),
			"tz":      c.Locals(LocalTimezone),
		})
	})
	app.Get("/admin", RequireRole("admin"), func(c *fiber.Ctx) error { return c.SendString("ok") })

	assert.Equal(t, http.StatusUnauthorized, status(t, app, httptest.NewRequest(http.MethodGet, "/", nil)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Premium", "true")
	req.Header.Set("X-User-Timezone", "Asia/Tokyo")
	assert.Equal(t, http.StatusOK, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "support")
	assert.Equal(t, http.StatusForbidden, status(t, app, req))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "support, admin")
	assert.Equal(t, http.StatusOK, status(t, app, req))
}

type stubValidator struct {
	resp *services.ValidateResponse
	err  error
}

func (s stubValidator) ValidateToken(context.Context, string, string) (*services.ValidateResponse, error) {
	return s.resp, s.err
}

func TestSSEAuthMiddleware(t *testing.T) {
	build := func(v TokenValidator) *fiber.App {
		app := fiber.New()
		app.Get("/stream", SSEAuthMiddleware(v, utils.NopLogger()), func(c *fiber.Ctx) error {
			return c.SendString(c.Locals(LocalUserID).(string))
		})
		return app
	}

	ok := build(stubValidator{resp: &services.ValidateResponse{UserID: "u1"}})
	assert.Equal(t, http.StatusBadRequest, status(t, ok, httptest.NewRequest(http.MethodGet, "/stream?token=abc", nil)))
	assert.Equal(t, http.StatusOK, status(t, ok, httptest.NewRequest(http.MethodGet, "/stream?token=abc&device_id=d1", nil)))

	denied := build(stubValidator{err: errors.New("expired")})
	assert.Equal(t, http.StatusUnauthorized, status(t, denied, httptest.NewRequest(http.MethodGet, "/stream?token=abc&device_id=d1", nil)))
}
