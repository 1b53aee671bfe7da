package integration

import (
	"errors"

	common_models "go-crm-sync/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type IntegrationController struct {
	Service OAuthService
}

func NewIntegrationController(service OAuthService) *IntegrationController {
	return &IntegrationController{Service: service}
}

// Authorize godoc
// @Summary Start the Pipedrive OAuth flow
// @Description Returns the provider authorization URL bound to a one-time state
// @Tags integrations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 412 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/authorize [get]
func (ctrl *IntegrationController) Authorize(c *fiber.Ctx) error {
	ctx := c.UserContext()
	url, err := ctrl.Service.AuthorizationURL(ctx, common_models.TenantID(ctx))
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"url": url})
}

// Callback godoc
// @Summary OAuth redirect target
// @Tags integrations
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State"
// @Success 200 {object} ConnectionStatus
// @Failure 400 {object} map[string]interface{}
// @Failure 412 {object} map[string]interface{}
// @Router /api/integrations/pipedrive/callback [get]
func (ctrl *IntegrationController) Callback(c *fiber.Ctx) error {
	if errParam := c.Query("error"); errParam != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errParam})
	}

	conn, err := ctrl.Service.HandleCallback(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		return c.Status(callbackStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"connected":    true,
		"company_id":   conn.CompanyID,
		"company_name": conn.CompanyName,
	})
}

func callbackStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidState):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotConfigured):
		return fiber.StatusPreconditionFailed
	default:
		return fiber.StatusBadGateway
	}
}

// Status godoc
// @Summary Connection status
// @Tags integrations
// @Produce json
// @Success 200 {object} ConnectionStatus
// @Router /api/integrations/pipedrive/status [get]
func (ctrl *IntegrationController) Status(c *fiber.Ctx) error {
	ctx := c.UserContext()
	status, err := ctrl.Service.Status(ctx, common_models.TenantID(ctx))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(status)
}

// Disconnect godoc
// @Summary Disconnect Pipedrive
// @Description Deletes the connection and its sync history. Synced customers and contacts are kept.
// @Tags integrations
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/integrations/pipedrive [delete]
func (ctrl *IntegrationController) Disconnect(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := ctrl.Service.Disconnect(ctx, common_models.TenantID(ctx)); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Disconnected"})
}
