package project

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ProjectApi struct {
	Controller *ProjectController
	config     *config.Config
}

func NewProjectApi(controller *ProjectController, config *config.Config) *ProjectApi {
	return &ProjectApi{
		Controller: controller,
		config:     config,
	}
}

func (a *ProjectApi) Setup(app *fiber.App) {
	api := app.Group("/api")
	RegisterRoutes(api, a.Controller, a.config)
}

// RegisterRoutes registers all project-related routes
func RegisterRoutes(api fiber.Router, ctrl *ProjectController, config *config.Config) {
	projects := api.Group("/projects", middleware.AuthMiddleware(config.SkipAuth))

	projects.Post("/", ctrl.CreateProject)
	projects.Get("/", ctrl.ListProjects)
	projects.Get("/:id", ctrl.GetProject)
	projects.Delete("/:id", ctrl.DeleteProject)

	// layer/page/line ids are absolute URIs, so they travel in the request
	// body or query string rather than the path
	projects.Post("/:id/layers", ctrl.AddLayer)
	projects.Put("/:id/layers", ctrl.UpdateLayer)
	projects.Delete("/:id/layers", ctrl.DeleteLayer)
	projects.Put("/:id/pages/order", ctrl.ReorderPages)
	projects.Post("/:id/lines", ctrl.CreateLine)
	projects.Put("/:id/lines/text", ctrl.UpdateLineText)
	projects.Put("/:id/lines/bounds", ctrl.UpdateLineBounds)
	projects.Delete("/:id/lines", ctrl.DeleteLine)

	projects.Post("/:id/invites", ctrl.SendInvite)
	projects.Post("/:id/invites/accept", ctrl.AcceptInvite)
	projects.Post("/:id/invites/decline", ctrl.DeclineInvite)
}
