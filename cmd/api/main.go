package main

import (
	"context"
	"fmt"
	"log"

	common_api "github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/common/api"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/database"
	emails "github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/email"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/group"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/project"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/user"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/logger"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/middleware"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/rerum"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
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

	app.Use(middleware.CORSMiddleware(cfg.InterfaceURL))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
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

// StartInvitePurge schedules the nightly sweep of expired invitee records.
func StartInvitePurge(lc fx.Lifecycle, users user.UserService, zlog *zap.Logger) {
	c := cron.New()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := c.AddFunc("@daily", func() {
				if err := users.PurgeStaleInvitees(context.Background()); err != nil {
					zlog.Error("invite purge failed", zap.Error(err))
				}
			})
			if err != nil {
				return err
			}
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// External annotation store
			rerum.NewClient,
			func(c *rerum.Client) transcription.Store { return c },

			// Initialize Repository
			group.NewGroupRepository,
			user.NewUserRepository,
			project.NewProjectRepository,
			emails.NewRepository,

			// Initialize Service
			group.NewGroupService,
			user.NewUserService,
			emails.NewService,
			func(s *emails.Service) project.InviteMailer { return s },
			project.NewProjectFactory,
			project.NewProjectService,

			// Initialize Controller
			permission.NewPermissionController,
			group.NewGroupController,
			user.NewUserController,
			project.NewProjectController,

			// Initialize API Routes
			AsRoute(permission.NewPermissionApi),
			AsRoute(group.NewGroupApi),
			AsRoute(user.NewUserApi),
			AsRoute(project.NewProjectApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartInvitePurge,
		),
	)

	app.Run()
}
