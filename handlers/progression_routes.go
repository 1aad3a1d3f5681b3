// handlers/progression_routes.go
package handlers

import (
	"daily-challenge-service/middleware"
	"daily-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(r fiber.Router, env RouteEnv, progression *services.ProgressionService, achievements *services.AchievementService) {
	r.Get("/user/progress", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		prog, err := progression.EnsureProgressRecord(c.UserContext(), ident)
		if err != nil {
			return writeError(c, env.Log, err)
		}

		level := services.LevelForXP(prog.TotalXP)
		return c.JSON(fiber.Map{
			"id":                       prog.ID,
			"xp":                       prog.TotalXP,
			"level":                    level.Name,
			"level_name":               level.DisplayName(),
			"level_rank":               level.Rank,
			"xp_to_next_level":         level.XPToNext(prog.TotalXP),
			"power_tokens":             prog.PowerTokens,
			"streak_rescues_available": prog.StreakRescuesAvailable,
			"is_premium":               prog.IsPremium,
			"last_level_up_at":         prog.LastLevelUpAt,
		})
	})

	r.Get("/levels", func(c *fiber.Ctx) error {
		return c.JSON(services.Levels())
	})

	r.Get("/achievements", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		list, err := achievements.ListForUser(c.UserContext(), ident.UserID, env.today(ident))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(list)
	})
}

// SetupAdminRoutes mounts operator endpoints; r must already carry user context.
func SetupAdminRoutes(r fiber.Router, env RouteEnv, progression *services.ProgressionService, streaks *services.StreakService, rollover *services.WeeklyRollover) {
	admin := r.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if ok, err := parseBody(c, &req); !ok {
			return err
		}

		prog, err := progression.AwardXP(c.UserContext(), req.UserID, req.XP, req.Reason)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(fiber.Map{
			"message":  "XP granted successfully",
			"user_id":  req.UserID,
			"xp":       req.XP,
			"total_xp": prog.TotalXP,
			"level":    prog.CurrentLevel,
		})
	})

	admin.Post("/wager/resolve", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required"`
			Won    *bool  `json:"won" validate:"required"`
		}
		var req Req
		if ok, err := parseBody(c, &req); !ok {
			return err
		}

		res, err := streaks.ResolveWager(c.UserContext(), req.UserID, *req.Won)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(res)
	})

	admin.Post("/rollover", func(c *fiber.Ctx) error {
		report, err := rollover.Run(c.UserContext())
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(report)
	})
}
