package permission

import (
	"github.com/gofiber/fiber/v2"
)

type PermissionApi struct {
	Controller *PermissionController
}

func NewPermissionApi(controller *PermissionController) *PermissionApi {
	return &PermissionApi{Controller: controller}
}

func (a *PermissionApi) Setup(app *fiber.App) {
	api := app.Group("/api")

	// role catalog is public read-only data
	perms := api.Group("/permissions")
	perms.Get("/roles", a.Controller.ListRoles)
	perms.Get("/check", a.Controller.CheckPermission)
}
