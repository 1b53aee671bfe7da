package settings

import (
	"errors"

	common_models "go-crm-sync/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type SettingsController struct {
	Service SettingsService
}

func NewSettingsController(service SettingsService) *SettingsController {
	return &SettingsController{
		Service: service,
	}
}

// GetOAuthConfig godoc
// @Summary Get the tenant OAuth app
// @Description Get the tenant's own Pipedrive OAuth application. The secret is never returned.
// @Tags settings
// @Produce json
// @Success 200 {object} OAuthAppConfig
// @Failure 500 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/config [get]
func (ctrl *SettingsController) GetOAuthConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	config, err := ctrl.Service.GetOAuthConfig(ctx, common_models.TenantID(ctx), ProviderPipedrive)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(config)
}

// UpdateOAuthConfig godoc
// @Summary Update the tenant OAuth app
// @Tags settings
// @Accept json
// @Produce json
// @Param config body OAuthAppConfig true "OAuth app"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/config [put]
func (ctrl *SettingsController) UpdateOAuthConfig(c *fiber.Ctx) error {
	var config OAuthAppConfig
	if err := c.BodyParser(&config); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx := c.UserContext()
	if err := ctrl.Service.UpdateOAuthConfig(ctx, common_models.TenantID(ctx), ProviderPipedrive, config); err != nil {
		if errors.Is(err, ErrMissingClientID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error updating integration settings",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Integration settings updated successfully",
	})
}
