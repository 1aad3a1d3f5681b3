// handlers/league_routes.go
package handlers

import (
	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupLeagueRoutes(r fiber.Router, env RouteEnv, progression *services.ProgressionService, leagues *services.LeagueService) {
	// Reading the league joins this week's cohort if the user has none yet.
	r.Get("/league/me", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		ctx := c.UserContext()

		prog, err := progression.EnsureProgressRecord(ctx, ident)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		weekStart := utils.WeekStartKey(env.today(ident))
		if _, err := leagues.AssignToLeague(ctx, ident.UserID, prog.TotalXP, weekStart); err != nil {
			return writeError(c, env.Log, err)
		}
		standings, err := leagues.Standings(ctx, ident.UserID, weekStart)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(standings)
	})
}
