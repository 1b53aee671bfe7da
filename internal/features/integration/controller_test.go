package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type stubOAuthService struct {
	OAuthService
	callbackErr error
}

func (s stubOAuthService) HandleCallback(ctx context.Context, code, state string) (*Connection, error) {
	if s.callbackErr != nil {
		return nil, s.callbackErr
	}
	return &Connection{CompanyID: 77, CompanyName: "Acme Ltd"}, nil
}

func TestCallback_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "connected", want: fiber.StatusOK},
		{name: "invalid state", err: ErrInvalidState, want: fiber.StatusBadRequest},
		{name: "app removed after authorize", err: fmt.Errorf("resolve app: %w", ErrNotConfigured), want: fiber.StatusPreconditionFailed},
		{name: "token exchange failed", err: errors.New("exchange failed"), want: fiber.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			ctrl := NewIntegrationController(stubOAuthService{callbackErr: tt.err})
			app.Get("/callback", ctrl.Callback)

			resp, err := app.Test(httptest.NewRequest("GET", "/callback?code=c&state=s", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
