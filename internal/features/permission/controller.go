package permission

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type PermissionController struct{}

func NewPermissionController() *PermissionController {
	return &PermissionController{}
}

// ListRoles godoc
func (c *PermissionController) ListRoles(ctx *fiber.Ctx) error {
	return ctx.JSON(BuiltinRoles)
}

// CheckPermission answers whether a permission string grants an
// action/scope/entity triple. Purely computational, handy for interface
// builders probing the matcher.
func (c *PermissionController) CheckPermission(ctx *fiber.Ctx) error {
	perm := ctx.Query("permission")
	action := strings.ToUpper(ctx.Query("action"))
	scope := strings.ToUpper(ctx.Query("scope"))
	entity := strings.ToUpper(ctx.Query("entity"))
	if perm == "" || action == "" || scope == "" || entity == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "permission, action, scope and entity query parameters required",
		})
	}

	return ctx.JSON(fiber.Map{
		"permission": perm,
		"matches":    Matches(perm, action, scope, entity),
	})
}
