// handlers/respond.go
package handlers

import (
	"errors"
	"time"

	"daily-challenge-service/middleware"
	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

var validate = validator.New()

// RouteEnv carries what every route group needs besides its service.
type RouteEnv struct {
	Clock           clockwork.Clock
	DefaultTimezone string
	Log             *utils.Logger
}

// today is the caller's current local time; day keys and week starts come from it.
func (e RouteEnv) today(ident services.Identity) time.Time {
	return services.LocalToday(e.Clock.Now(), ident, e.DefaultTimezone)
}

func identityFrom(c *fiber.Ctx) services.Identity {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	premium, _ := c.Locals(middleware.LocalPremium).(bool)
	tz, _ := c.Locals(middleware.LocalTimezone).(string)
	return services.Identity{UserID: userID, Premium: premium, Timezone: tz}
}

// parseBody decodes and validates the JSON body. On failure the 400 response
// has already been written and ok is false.
func parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON",
			"cause": err.Error(),
		})
	}
	if err := validate.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation failed",
			"cause": err.Error(),
		})
	}
	return true, nil
}

// writeError maps service errors onto HTTP. AlreadyCompleted is not a failure.
func writeError(c *fiber.Ctx, log *utils.Logger, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrAlreadyCompleted):
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"already_completed": true,
			"message":           err.Error(),
		})
	case errors.Is(err, services.ErrNotAuthenticated):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrMissionNotFound), errors.Is(err, services.ErrUserNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrPremiumRequired):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrShieldUnavailable),
		errors.Is(err, services.ErrWagerActive),
		errors.Is(err, services.ErrNoActiveWager):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrInsufficientTokens),
		errors.Is(err, services.ErrInsufficientSeeds),
		errors.Is(err, services.ErrMissionNotScheduled):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidMood):
		status = fiber.StatusBadRequest
	case services.IsStorageError(err):
		log.Error("[HTTP] storage failure", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "temporarily unavailable, please retry",
			"retryable": true,
		})
	default:
		log.Error("[HTTP] unexpected error", "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error":     "internal error",
			"retryable": true,
		})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
