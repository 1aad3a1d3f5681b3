// handlers/events_routes.go
package handlers

import (
	"daily-challenge-service/middleware"
	"daily-challenge-service/services"
	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes exposes the change stream. EventSource cannot set headers,
// so the stream authenticates with a query token instead of gateway headers.
func SetupEventRoutes(app *fiber.App, validator middleware.TokenValidator, stream *services.EventStream, log *utils.Logger) {
	app.Get("/events/stream", middleware.SSEAuthMiddleware(validator, log), stream.StreamUserEventsSSE)
}
