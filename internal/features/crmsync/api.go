package crmsync

import (
	"go-crm-sync/internal/common/api"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	// Auth is per route: a prefix-wide Use here would also catch the OAuth callback.
	auth := middleware.AuthMiddleware(h.config.SkipAuth)
	group := app.Group("/api/integrations/pipedrive")

	group.Post("/sync", auth, h.controller.RunSync)
	group.Get("/sync/history", auth, h.controller.ListHistory)
	group.Get("/sync/history/:id", auth, h.controller.GetRun)

	group.Get("/field-mapping", auth, h.controller.GetFieldMapping)
	group.Put("/field-mapping", auth, h.controller.UpdateFieldMapping)

	group.Get("/sync-config", auth, h.controller.GetSyncConfig)
	group.Put("/sync-config", auth, h.controller.UpdateSyncConfig)
}
