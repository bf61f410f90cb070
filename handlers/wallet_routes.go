// handlers/wallet_routes.go
package handlers

import (
	"piece-core-system/middleware"
	"piece-core-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/user/wallet", walletService.GetWallet)
	secured.Get("/user/wallet/transactions", walletService.GetLedgerHistory)
}
