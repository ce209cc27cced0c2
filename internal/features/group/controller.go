package group

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupController struct {
	Service GroupService
}

func NewGroupController(service GroupService) *GroupController {
	return &GroupController{Service: service}
}

// GetMembers godoc
func (c *GroupController) GetMembers(ctx *fiber.Ctx) error {
	group, caller, err := c.loadForCaller(ctx, permission.ActionRead, permission.ScopeAll, permission.EntityMember)
	if err != nil {
		return respondError(ctx, err)
	}
	_ = caller

	return ctx.JSON(group.Members)
}

// GetMemberRoles godoc
func (c *GroupController) GetMemberRoles(ctx *fiber.Ctx) error {
	group, _, err := c.loadForCaller(ctx, permission.ActionRead, permission.ScopeAll, permission.EntityRole)
	if err != nil {
		return respondError(ctx, err)
	}

	roles, err := group.GetMemberRoles(ctx.Params("memberId"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(roles)
}

// AddMember godoc
func (c *GroupController) AddMember(ctx *fiber.Ctx) error {
	group, caller, err := c.loadForCaller(ctx, permission.ActionCreate, permission.ScopeAll, permission.EntityMember)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		MemberID string   `json:"member_id"`
		Roles    []string `json:"roles"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.MemberID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// only an existing owner may hand out OWNER
	allowOwner := callerIsOwner(group, caller)
	updated, err := c.Service.AddMember(ctx.UserContext(), group.ID, body.MemberID, body.Roles, allowOwner)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(updated.Members)
}

// SetMemberRoles godoc
func (c *GroupController) SetMemberRoles(ctx *fiber.Ctx) error {
	return c.roleChange(ctx, func(groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error) {
		return c.Service.SetMemberRoles(ctx.UserContext(), groupID, memberID, roles, allowOwner)
	})
}

// AddMemberRoles godoc
func (c *GroupController) AddMemberRoles(ctx *fiber.Ctx) error {
	return c.roleChange(ctx, func(groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error) {
		return c.Service.AddMemberRoles(ctx.UserContext(), groupID, memberID, roles, allowOwner)
	})
}

// RemoveMemberRoles godoc
func (c *GroupController) RemoveMemberRoles(ctx *fiber.Ctx) error {
	return c.roleChange(ctx, func(groupID primitive.ObjectID, memberID string, roles []string, _ bool) (*Group, error) {
		return c.Service.RemoveMemberRoles(ctx.UserContext(), groupID, memberID, roles)
	})
}

// RemoveMember godoc
func (c *GroupController) RemoveMember(ctx *fiber.Ctx) error {
	memberID := ctx.Params("memberId")
	group, caller, err := c.loadForCaller(ctx, permission.ActionDelete, permission.ScopeAll, permission.EntityMember)
	if err != nil {
		// leaving a group voluntarily needs no permission
		if apperror.KindOf(err) != apperror.KindForbidden {
			return respondError(ctx, err)
		}
		group, caller, err = c.load(ctx)
		if err != nil || caller != memberID {
			return respondError(ctx, apperror.Forbidden("insufficient permissions"))
		}
	}

	updated, err := c.Service.RemoveMember(ctx.UserContext(), group.ID, memberID, caller == memberID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Members)
}

// UpdateCustomRoles godoc
func (c *GroupController) UpdateCustomRoles(ctx *fiber.Ctx) error {
	group, _, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeAll, permission.EntityRole)
	if err != nil {
		return respondError(ctx, err)
	}

	var body map[string]any
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.UpdateCustomRoles(ctx.UserContext(), group.ID, body)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.CustomRoles)
}

// AddCustomRoles godoc
func (c *GroupController) AddCustomRoles(ctx *fiber.Ctx) error {
	group, _, err := c.loadForCaller(ctx, permission.ActionCreate, permission.ScopeAll, permission.EntityRole)
	if err != nil {
		return respondError(ctx, err)
	}

	var body map[string]any
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.AddCustomRoles(ctx.UserContext(), group.ID, body)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.CustomRoles)
}

// RemoveCustomRoles godoc
func (c *GroupController) RemoveCustomRoles(ctx *fiber.Ctx) error {
	group, _, err := c.loadForCaller(ctx, permission.ActionDelete, permission.ScopeAll, permission.EntityRole)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Roles []string `json:"roles"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.RemoveCustomRoles(ctx.UserContext(), group.ID, body.Roles)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.CustomRoles)
}

func (c *GroupController) roleChange(ctx *fiber.Ctx, apply func(primitive.ObjectID, string, []string, bool) (*Group, error)) error {
	group, caller, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeAll, permission.EntityRole)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Roles []string `json:"roles"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := apply(group.ID, ctx.Params("memberId"), body.Roles, callerIsOwner(group, caller))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Members)
}

// load fetches the group from the path and the calling user from the JWT.
func (c *GroupController) load(ctx *fiber.Ctx) (*Group, string, error) {
	id, err := primitive.ObjectIDFromHex(ctx.Params("id"))
	if err != nil {
		return nil, "", apperror.BadRequest("invalid group id")
	}
	group, err := c.Service.GetGroupByID(ctx.UserContext(), id)
	if err != nil {
		return nil, "", err
	}

	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return nil, "", apperror.Forbidden("unauthenticated")
	}
	return group, claims.UserID, nil
}

// loadForCaller additionally requires the caller to hold a permission
// matching the triple.
func (c *GroupController) loadForCaller(ctx *fiber.Ctx, action, scope, entity string) (*Group, string, error) {
	group, caller, err := c.load(ctx)
	if err != nil {
		return nil, "", err
	}
	perms, err := group.EffectivePermissions(caller)
	if err != nil || !permission.AnyMatches(perms, action, scope, entity) {
		return group, caller, apperror.Forbidden("insufficient permissions")
	}
	return group, caller, nil
}

func callerIsOwner(group *Group, caller string) bool {
	perms, err := group.EffectivePermissions(caller)
	return err == nil && permission.AnyMatches(perms, permission.ActionAll, permission.ScopeAll, permission.EntityAll)
}

func respondError(ctx *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	if copy := apperror.ServerCopyOf(err); copy != nil {
		body["current"] = copy
	}
	return ctx.Status(apperror.HTTPStatus(err)).JSON(body)
}
