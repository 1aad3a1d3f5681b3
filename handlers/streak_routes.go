// handlers/streak_routes.go
package handlers

import (
	"daily-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupStreakRoutes(r fiber.Router, env RouteEnv, streaks *services.StreakService) {
	r.Get("/streak", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		summary, err := streaks.GetStreak(c.UserContext(), ident, env.today(ident))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(summary)
	})

	r.Post("/streak/check-in", func(c *fiber.Ctx) error {
		var req services.CheckInRequest
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		ident := identityFrom(c)
		res, err := streaks.RecordCheckIn(c.UserContext(), ident, env.today(ident), req)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(res)
	})

	r.Post("/streak/shield", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		prog, err := streaks.ActivateShield(c.UserContext(), ident, env.today(ident))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(fiber.Map{
			"shield_armed":   prog.ShieldArmed,
			"shield_used_at": prog.ShieldUsedAt,
		})
	})

	r.Post("/streak/wager", func(c *fiber.Ctx) error {
		type Req struct {
			Seeds int64 `json:"seeds" validate:"required,min=1"`
		}
		var req Req
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
		ident := identityFrom(c)
		prog, err := streaks.PlaceWager(c.UserContext(), ident, req.Seeds, env.today(ident))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"wager_active":        prog.WagerActive,
			"wager_amount":        prog.WagerAmount,
			"wager_target_streak": prog.WagerTargetStreak,
			"power_tokens":        prog.PowerTokens,
		})
	})

	r.Post("/perks/streak-rescue", func(c *fiber.Ctx) error {
		prog, err := streaks.PurchaseStreakRescue(c.UserContext(), identityFrom(c))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(fiber.Map{
			"streak_rescues_available": prog.StreakRescuesAvailable,
			"power_tokens":             prog.PowerTokens,
			"cost":                     services.StreakRescueCost,
		})
	})
}
