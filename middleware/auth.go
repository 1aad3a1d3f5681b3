// middleware/auth.go
package middleware

import (
	"strconv"
	"strings"

	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

// Locals keys shared with handlers.
const (
	LocalUserID   = "user_id"
	LocalPremium  = "user_premium"
	LocalTimezone = "user_timezone"
	LocalRoles    = "user_roles"
)

// UserContextMiddleware reads the identity the gateway resolved for the caller.
// A request without X-User-ID is rejected.
func UserContextMiddleware(log *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("[USER_CTX] X-User-ID missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		premium, _ := strconv.ParseBool(c.Get("X-User-Premium"))

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalPremium, premium)
		c.Locals(LocalTimezone, strings.TrimSpace(c.Get("X-User-Timezone")))
		c.Locals(LocalRoles, roles)

		log.Debug("[USER_CTX] resolved", "user_id", userID, "premium", premium, "roles", roles, "path", c.Path())
		return c.Next()
	}
}

// RequireRole lets the request through only if the caller has role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalRoles).([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden",
		})
	}
}
