package integration

import (
	"go-crm-sync/internal/common/api"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type IntegrationApi struct {
	controller *IntegrationController
	config     *config.Config
}

func NewIntegrationApi(controller *IntegrationController, config *config.Config) api.Route {
	return &IntegrationApi{
		controller: controller,
		config:     config,
	}
}

func (h *IntegrationApi) Setup(app *fiber.App) {
	auth := middleware.AuthMiddleware(h.config.SkipAuth)
	group := app.Group("/api/integrations/pipedrive")

	// The provider redirects the browser here without our JWT, the state binds the tenant.
	group.Get("/callback", h.controller.Callback)

	group.Get("/authorize", auth, h.controller.Authorize)
	group.Get("/status", auth, h.controller.Status)
	group.Delete("/", auth, h.controller.Disconnect)
}
