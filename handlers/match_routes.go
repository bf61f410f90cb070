// handlers/match_routes.go
package handlers

import (
	"piece-core-system/middleware"
	"piece-core-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/match/send-piece", matchService.SendPieceEndpoint)
	secured.Get("/match/intents", matchService.GetPendingIntents)
	secured.Post("/match/intents/:id/respond", matchService.RespondEndpoint)

	secured.Get("/matches", matchService.GetMatches)
	secured.Delete("/matches/:id", matchService.DeactivateMatchEndpoint)
}
