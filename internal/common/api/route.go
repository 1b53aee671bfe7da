package api

import "github.com/gofiber/fiber/v2"

// Route registers a feature's HTTP handlers.
type Route interface {
	Setup(app *fiber.App)
}
