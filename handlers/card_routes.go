// handlers/card_routes.go
package handlers

import (
	"piece-core-system/middleware"
	"piece-core-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCardRoutes(app *fiber.App, cardService *services.CardService, unlockService *services.UnlockService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/feed", cardService.GetFeed)

	secured.Post("/cards", cardService.CreateCardEndpoint)
	secured.Get("/cards/:id", cardService.GetCard)
	secured.Delete("/cards/:id", cardService.DeactivateCardEndpoint)
	secured.Get("/user/cards", cardService.GetMyCards)

	secured.Post("/pieces/:id/unlock", unlockService.UnlockPiece)
	secured.Get("/user/unlocks", unlockService.GetUserUnlocks)
}
