package cron_feature

import (
	common_models "go-crm-sync/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type CronController struct {
	Service SchedulerService
}

func NewCronController(service SchedulerService) *CronController {
	return &CronController{Service: service}
}

// GetSchedule godoc
// @Summary Auto-sync schedule of the current tenant
// @Tags cron
// @Produce json
// @Success 200 {array} ScheduledSync
// @Router /api/integrations/pipedrive/schedule [get]
func (ctrl *CronController) GetSchedule(c *fiber.Ctx) error {
	tenantID := common_models.TenantID(c.UserContext())
	jobs := []ScheduledSync{}
	for _, job := range ctrl.Service.ListScheduled() {
		if job.TenantID == tenantID {
			jobs = append(jobs, job)
		}
	}
	return c.JSON(jobs)
}

// Reload godoc
// @Summary Re-read auto-sync settings now
// @Tags cron
// @Success 200 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/schedule/reload [post]
func (ctrl *CronController) Reload(c *fiber.Ctx) error {
	if err := ctrl.Service.Reload(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Schedule reloaded"})
}
