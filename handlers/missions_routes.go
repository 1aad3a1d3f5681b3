// handlers/missions_routes.go
package handlers

import (
	"daily-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(r fiber.Router, env RouteEnv, missions *services.MissionService) {
	r.Get("/missions/today", func(c *fiber.Ctx) error {
		ident := identityFrom(c)
		board, err := missions.TodayBoard(c.UserContext(), ident, env.today(ident))
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.JSON(board)
	})

	r.Post("/missions/:id/complete", func(c *fiber.Ctx) error {
		type Req struct {
			Metadata map[string]interface{} `json:"metadata"`
		}
		var req Req
		if len(c.Body()) > 0 {
			if ok, err := parseBody(c, &req); !ok {
				return err
			}
		}

		ident := identityFrom(c)
		res, err := missions.CompleteMission(c.UserContext(), ident, c.Params("id"), env.today(ident), req.Metadata)
		if err != nil {
			return writeError(c, env.Log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}
