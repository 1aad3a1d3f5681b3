// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"

	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator is satisfied by services.AuthServiceClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware authenticates EventSource clients, which cannot send
// headers, from the `token` and `device_id` query params.
func SSEAuthMiddleware(validator TokenValidator, log *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			log.Warn("[SSEAuth] validation failed", "device_id", deviceID, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(LocalUserID, resp.UserID)
		c.Locals(LocalPremium, resp.Premium)
		c.Locals(LocalTimezone, resp.Timezone)
		log.Debug("[SSEAuth] authenticated", "user_id", resp.UserID, "device_id", deviceID)
		return c.Next()
	}
}
