// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware accepts only requests carrying the gateway's service token.
func GatewayAuthMiddleware(expectedToken string, log *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Warn("[GATEWAY_AUTH] missing Authorization header", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// "Bearer <token>", or the raw token
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("[GATEWAY_AUTH] invalid token", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
