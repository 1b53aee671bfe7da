package settings

import (
	"go-crm-sync/internal/common/api"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SettingsApi struct {
	Controller *SettingsController
	Config     *config.Config
}

func NewSettingsApi(controller *SettingsController, config *config.Config) api.Route {
	return &SettingsApi{
		Controller: controller,
		Config:     config,
	}
}

func (a *SettingsApi) Setup(app *fiber.App) {
	group := app.Group("/api/integrations/pipedrive/config", middleware.AuthMiddleware(a.Config.SkipAuth))

	group.Get("/", a.Controller.GetOAuthConfig)
	group.Put("/", a.Controller.UpdateOAuthConfig)
}
