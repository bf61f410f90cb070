// handlers/report_routes.go
package handlers

import (
	"piece-core-system/middleware"
	"piece-core-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReportRoutes(app *fiber.App, reportService *services.ReportService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/reports", reportService.CreateReportEndpoint)

	secured.Post("/blocks", reportService.BlockEndpoint)
	secured.Get("/blocks", reportService.ListBlocksEndpoint)
	secured.Delete("/blocks/:target", reportService.UnblockEndpoint)
}
