package crmsync

import (
	"errors"
	"strconv"

	common_models "go-crm-sync/internal/common/models"
	cron_feature "go-crm-sync/internal/features/cron"
	"go-crm-sync/internal/features/integration"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SyncController struct {
	Service   SyncService
	Scheduler cron_feature.SchedulerService
	Logger    *zap.Logger
}

func NewSyncController(service SyncService, scheduler cron_feature.SchedulerService, logger *zap.Logger) *SyncController {
	return &SyncController{
		Service:   service,
		Scheduler: scheduler,
		Logger:    logger,
	}
}

type runSyncRequest struct {
	SyncType SyncType `json:"sync_type"`
}

type fieldMappingRequest struct {
	FieldMapping map[string]string `json:"field_mapping"`
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrSyncInProgress):
		return fiber.StatusConflict
	case errors.Is(err, integration.ErrNotConnected), errors.Is(err, ErrRunNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidSyncType), errors.Is(err, ErrInvalidSyncConfig):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

// RunSync godoc
// @Summary Run a sync now
// @Description Runs a full, incremental or manual sync and waits for it to finish
// @Tags sync
// @Accept json
// @Produce json
// @Param body body runSyncRequest false "Sync type, defaults to manual"
// @Success 200 {object} SyncResult
// @Failure 409 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/sync [post]
func (ctrl *SyncController) RunSync(c *fiber.Ctx) error {
	req := runSyncRequest{SyncType: SyncTypeManual}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if t := c.Query("type"); t != "" {
		req.SyncType = SyncType(t)
	}
	if req.SyncType == "" {
		req.SyncType = SyncTypeManual
	}

	ctx := c.UserContext()
	result, err := ctrl.Service.RunForTenant(ctx, common_models.TenantID(ctx), req.SyncType)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// ListHistory godoc
// @Summary Sync history
// @Tags sync
// @Produce json
// @Param limit query int false "Max runs, newest first"
// @Success 200 {array} SyncRun
// @Router /api/integrations/pipedrive/sync/history [get]
func (ctrl *SyncController) ListHistory(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	ctx := c.UserContext()
	runs, err := ctrl.Service.ListHistory(ctx, common_models.TenantID(ctx), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(runs)
}

// GetRun godoc
// @Summary One sync run
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} SyncRun
// @Failure 404 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/sync/history/{id} [get]
func (ctrl *SyncController) GetRun(c *fiber.Ctx) error {
	ctx := c.UserContext()
	run, err := ctrl.Service.GetRun(ctx, common_models.TenantID(ctx), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(run)
}

// GetFieldMapping godoc
// @Summary Field mapping with the remote field definitions
// @Tags sync
// @Produce json
// @Success 200 {object} FieldMappingView
// @Router /api/integrations/pipedrive/field-mapping [get]
func (ctrl *SyncController) GetFieldMapping(c *fiber.Ctx) error {
	ctx := c.UserContext()
	view, err := ctrl.Service.GetFieldMapping(ctx, common_models.TenantID(ctx))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(view)
}

// UpdateFieldMapping godoc
// @Summary Replace the field mapping
// @Tags sync
// @Accept json
// @Param body body fieldMappingRequest true "Mapping"
// @Success 200 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/field-mapping [put]
func (ctrl *SyncController) UpdateFieldMapping(c *fiber.Ctx) error {
	var req fieldMappingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctx := c.UserContext()
	if err := ctrl.Service.UpdateFieldMapping(ctx, common_models.TenantID(ctx), req.FieldMapping); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Field mapping updated"})
}

// GetSyncConfig godoc
// @Summary Sync settings
// @Tags sync
// @Produce json
// @Success 200 {object} integration.SyncConfig
// @Router /api/integrations/pipedrive/sync-config [get]
func (ctrl *SyncController) GetSyncConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	cfg, err := ctrl.Service.GetSyncConfig(ctx, common_models.TenantID(ctx))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cfg)
}

// UpdateSyncConfig godoc
// @Summary Replace the sync settings
// @Description Also reschedules the tenant's auto sync
// @Tags sync
// @Accept json
// @Param body body integration.SyncConfig true "Settings"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/sync-config [put]
func (ctrl *SyncController) UpdateSyncConfig(c *fiber.Ctx) error {
	var cfg integration.SyncConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctx := c.UserContext()
	if err := ctrl.Service.UpdateSyncConfig(ctx, common_models.TenantID(ctx), cfg); err != nil {
		return fail(c, err)
	}
	if err := ctrl.Scheduler.Reload(ctx); err != nil {
		ctrl.Logger.Error("Failed to reload auto-sync schedule", zap.Error(err))
	}
	return c.JSON(fiber.Map{"message": "Sync config updated"})
}
