package cron_feature

import (
	"go-crm-sync/internal/common/api"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CronApi struct {
	controller *CronController
	config     *config.Config
}

func NewCronApi(controller *CronController, config *config.Config) api.Route {
	return &CronApi{
		controller: controller,
		config:     config,
	}
}

func (h *CronApi) Setup(app *fiber.App) {
	schedule := app.Group("/api/integrations/pipedrive/schedule", middleware.AuthMiddleware(h.config.SkipAuth))

	schedule.Get("/", h.controller.GetSchedule)
	schedule.Post("/reload", h.controller.Reload)
}
