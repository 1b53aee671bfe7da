package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-crm-sync/internal/common/api"
	"go-crm-sync/internal/config"
	"go-crm-sync/internal/connectors/pipedrive"
	"go-crm-sync/internal/database"
	"go-crm-sync/internal/features/audit"
	"go-crm-sync/internal/features/crmsync"
	cron_feature "go-crm-sync/internal/features/cron"
	"go-crm-sync/internal/features/customer"
	"go-crm-sync/internal/features/integration"
	"go-crm-sync/internal/features/settings"
	"go-crm-sync/internal/features/system"
	"go-crm-sync/internal/logger"
	"go-crm-sync/internal/middleware"
	"go-crm-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route of the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				logger.Info("Starting server", zap.String("port", port))
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

type indexParams struct {
	fx.In

	Settings    settings.SettingsRepository
	Connections integration.ConnectionRepository
	States      integration.StateStore
	Runs        crmsync.SyncRunRepository
	Customers   customer.CustomerRepository
	Contacts    customer.ContactRepository
	Audit       audit.AuditRepository
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, p indexParams, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := database.EnsureIndexes(ctx, p.Settings, p.Connections, p.States, p.Runs, p.Customers, p.Contacts, p.Audit); err != nil {
				logger.Error("Failed to ensure indexes", zap.Error(err))
				return err
			}
			return nil
		},
	})
}

func NewPipedriveFactory(cfg *config.Config) *pipedrive.Factory {
	return pipedrive.NewFactory(pipedrive.WithRateLimit(cfg.PipedriveRPS, 2))
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,
			NewPipedriveFactory,

			// Repositories
			audit.NewAuditRepository,
			settings.NewSettingsRepository,
			integration.NewConnectionRepository,
			integration.NewStateStore,
			crmsync.NewSyncRunRepository,
			customer.NewCustomerRepository,
			customer.NewContactRepository,

			// Services
			audit.NewAuditService,
			settings.NewSettingsService,
			integration.NewConfigResolver,
			integration.NewTokenManager,
			integration.NewOAuthService,
			crmsync.NewClientFactory,
			crmsync.OptionsFromConfig,
			crmsync.NewSyncService,
			cron_feature.NewSchedulerService,

			// Interface adapters
			func(r crmsync.SyncRunRepository) integration.RunHistoryPurger { return r },
			func(s crmsync.SyncService) cron_feature.SyncRunner { return s },

			// Controllers
			audit.NewAuditController,
			settings.NewSettingsController,
			integration.NewIntegrationController,
			crmsync.NewSyncController,
			cron_feature.NewCronController,

			// Routes
			AsRoute(system.NewHealthApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(settings.NewSettingsApi),
			AsRoute(integration.NewIntegrationApi),
			AsRoute(crmsync.NewSyncApi),
			AsRoute(cron_feature.NewCronApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			InitializeIndexes,
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, scheduler cron_feature.SchedulerService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduler.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return scheduler.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
