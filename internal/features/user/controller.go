package user

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Service UserService
}

func NewUserController(service UserService) *UserController {
	return &UserController{Service: service}
}

// GetProfile godoc
func (c *UserController) GetProfile(ctx *fiber.Ctx) error {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return respondError(ctx, apperror.Forbidden("unauthenticated"))
	}

	u, err := c.Service.GetUserByID(ctx.UserContext(), claims.UserID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(u)
}

// GetAgent resolves the public agent URI for a user id. No auth: agent URIs
// appear as creator values in public annotation documents.
func (c *UserController) GetAgent(ctx *fiber.Ctx) error {
	agent, err := c.Service.Resolve(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"id": agent, "type": "Agent"})
}

func respondError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(apperror.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
}
