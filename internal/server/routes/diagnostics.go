package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/asset-hub/internal/metrics"
	"github.com/any-hub/asset-hub/internal/server"
)

// RegisterDiagnosticRoutes 暴露 /-/stats 与 /-/metrics 诊断接口。
func RegisterDiagnosticRoutes(app *fiber.App, service server.AssetService, m *metrics.Metrics) {
	if app == nil || service == nil {
		return
	}

	app.Get("/-/stats", func(c fiber.Ctx) error {
		return c.JSON(service.Stats())
	})

	if m != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(m.Handler()))
	}
}
