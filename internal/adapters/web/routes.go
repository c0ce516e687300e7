package web

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures the application routes.
func SetupRoutes(app *fiber.App, handlers *Handlers, staticDir string) {
	if staticDir != "" {
		app.Static("/static", staticDir)
	}

	app.Get("/healthz", handlers.Health)

	app.Get("/", handlers.Home)

	// Shareable page: /downloader?url=<tweet url>
	app.Get("/downloader", handlers.Downloader)

	// HTMX form target
	app.Post("/fetch", handlers.FetchTweet)

	api := app.Group("/api")
	api.Get("/tweet", handlers.APIGetTweet)
	api.Get("/requestx", handlers.deps.Limiter.Middleware(), handlers.RequestX)
	api.Get("/requestdb", handlers.RequestDB)
	api.Get("/remains", handlers.Remains)

	app.Use(handlers.NotFound)
}
