package group

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type GroupApi struct {
	Controller *GroupController
	config     *config.Config
}

func NewGroupApi(controller *GroupController, config *config.Config) *GroupApi {
	return &GroupApi{
		Controller: controller,
		config:     config,
	}
}

func (a *GroupApi) Setup(app *fiber.App) {
	api := app.Group("/api")
	RegisterRoutes(api, a.Controller, a.config)
}

// RegisterRoutes registers all group-related routes
func RegisterRoutes(api fiber.Router, ctrl *GroupController, config *config.Config) {
	groups := api.Group("/groups", middleware.AuthMiddleware(config.SkipAuth))

	groups.Get("/:id/members", ctrl.GetMembers)
	groups.Post("/:id/members", ctrl.AddMember)
	groups.Delete("/:id/members/:memberId", ctrl.RemoveMember)
	groups.Get("/:id/members/:memberId/roles", ctrl.GetMemberRoles)
	groups.Put("/:id/members/:memberId/roles", ctrl.SetMemberRoles)
	groups.Post("/:id/members/:memberId/roles", ctrl.AddMemberRoles)
	groups.Delete("/:id/members/:memberId/roles", ctrl.RemoveMemberRoles)
	groups.Put("/:id/roles", ctrl.UpdateCustomRoles)
	groups.Post("/:id/roles", ctrl.AddCustomRoles)
	groups.Delete("/:id/roles", ctrl.RemoveCustomRoles)
}
