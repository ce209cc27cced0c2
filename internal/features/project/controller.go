package project

import (
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/group"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProjectController struct {
	Service ProjectService
	Groups  group.GroupService
}

func NewProjectController(service ProjectService, groups group.GroupService) *ProjectController {
	return &ProjectController{Service: service, Groups: groups}
}

// CreateProject godoc
func (c *ProjectController) CreateProject(ctx *fiber.Ctx) error {
	caller, err := callerID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Manifest string `json:"manifest"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Manifest == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	project, err := c.Service.CreateProject(ctx.UserContext(), body.Manifest, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(project)
}

// ListProjects godoc
func (c *ProjectController) ListProjects(ctx *fiber.Ctx) error {
	caller, err := callerID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	projects, err := c.Service.ListProjectsForUser(ctx.UserContext(), caller)
	if err != nil {
		return respondError(ctx, err)
	}
	if projects == nil {
		projects = []Project{}
	}
	return ctx.JSON(projects)
}

// GetProject godoc
func (c *ProjectController) GetProject(ctx *fiber.Ctx) error {
	project, _, err := c.loadForCaller(ctx, permission.ActionRead, permission.ScopeAll, permission.EntityProject)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(project)
}

// DeleteProject godoc
func (c *ProjectController) DeleteProject(ctx *fiber.Ctx) error {
	project, _, err := c.loadForCaller(ctx, permission.ActionDelete, permission.ScopeAll, permission.EntityProject)
	if err != nil {
		return respondError(ctx, err)
	}
	if err := c.Service.DeleteProject(ctx.UserContext(), project.ID); err != nil {
		return respondError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// AddLayer godoc
func (c *ProjectController) AddLayer(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionCreate, permission.ScopeAll, permission.EntityLayer)
	if err != nil {
		return respondError(ctx, err)
	}

	var layer transcription.Layer
	if err := ctx.BodyParser(&layer); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.AddLayer(ctx.UserContext(), project.ID, layer, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(updated.Layers)
}

// UpdateLayer godoc
func (c *ProjectController) UpdateLayer(ctx *fiber.Ctx) error {
	project, _, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeAll, permission.EntityLayer)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Layer      transcription.Layer `json:"layer"`
		PreviousID string              `json:"previous_id"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.PreviousID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.UpdateLayer(ctx.UserContext(), project.ID, body.Layer, body.PreviousID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// DeleteLayer godoc
func (c *ProjectController) DeleteLayer(ctx *fiber.Ctx) error {
	project, _, err := c.loadForCaller(ctx, permission.ActionDelete, permission.ScopeAll, permission.EntityLayer)
	if err != nil {
		return respondError(ctx, err)
	}

	layerID := ctx.Query("layer")
	if layerID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "layer query parameter required",
		})
	}

	updated, err := c.Service.DeleteLayer(ctx.UserContext(), project.ID, layerID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// ReorderPages godoc
func (c *ProjectController) ReorderPages(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeOrder, permission.EntityPage)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Layer string   `json:"layer"`
		Order []string `json:"order"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Layer == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.ReorderPages(ctx.UserContext(), project.ID, body.Layer, body.Order, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// CreateLine godoc
func (c *ProjectController) CreateLine(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionCreate, permission.ScopeAll, permission.EntityLine)
	if err != nil {
		return respondError(ctx, err)
	}

	// layer is optional: an omitted id resolves to the layer holding the page
	var body struct {
		Layer string             `json:"layer"`
		Page  string             `json:"page"`
		Line  transcription.Line `json:"line"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Page == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.CreateLine(ctx.UserContext(), project.ID, body.Layer, body.Page, body.Line, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(updated.Layers)
}

// UpdateLineText godoc
func (c *ProjectController) UpdateLineText(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeText, permission.EntityLine)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Layer string `json:"layer"`
		Page  string `json:"page"`
		Line  string `json:"line"`
		Text  string `json:"text"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Page == "" || body.Line == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.UpdateLineText(ctx.UserContext(), project.ID, body.Layer, body.Page, body.Line, body.Text, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// UpdateLineBounds godoc
func (c *ProjectController) UpdateLineBounds(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionUpdate, permission.ScopeSelector, permission.EntityLine)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Layer  string               `json:"layer"`
		Page   string               `json:"page"`
		Line   string               `json:"line"`
		Bounds transcription.Bounds `json:"bounds"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Page == "" || body.Line == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updated, err := c.Service.UpdateLineBounds(ctx.UserContext(), project.ID, body.Layer, body.Page, body.Line, body.Bounds, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// DeleteLine godoc
func (c *ProjectController) DeleteLine(ctx *fiber.Ctx) error {
	project, _, err := c.loadForCaller(ctx, permission.ActionDelete, permission.ScopeAll, permission.EntityLine)
	if err != nil {
		return respondError(ctx, err)
	}

	layerID, pageID, lineID := ctx.Query("layer"), ctx.Query("page"), ctx.Query("line")
	if pageID == "" || lineID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "page and line query parameters required",
		})
	}

	updated, err := c.Service.DeleteLine(ctx.UserContext(), project.ID, layerID, pageID, lineID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(updated.Layers)
}

// SendInvite godoc
func (c *ProjectController) SendInvite(ctx *fiber.Ctx) error {
	project, caller, err := c.loadForCaller(ctx, permission.ActionCreate, permission.ScopeAll, permission.EntityMember)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Email == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	allowOwner, err := c.callerIsOwner(ctx, project, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	if _, err := c.Service.SendInvite(ctx.UserContext(), project.ID, body.Email, body.Roles, allowOwner); err != nil {
		return respondError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

// AcceptInvite godoc
func (c *ProjectController) AcceptInvite(ctx *fiber.Ctx) error {
	caller, err := callerID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}
	projectID, err := pathID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Code == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	project, err := c.Service.AcceptInvite(ctx.UserContext(), projectID, body.Code, caller)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(project)
}

// DeclineInvite godoc
func (c *ProjectController) DeclineInvite(ctx *fiber.Ctx) error {
	projectID, err := pathID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := ctx.BodyParser(&body); err != nil || body.Code == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := c.Service.DeclineInvite(ctx.UserContext(), projectID, body.Code); err != nil {
		return respondError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *ProjectController) loadForCaller(ctx *fiber.Ctx, action, scope, entity string) (*Project, string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, "", err
	}
	id, err := pathID(ctx)
	if err != nil {
		return nil, "", err
	}
	project, err := c.Service.GetProjectByID(ctx.UserContext(), id)
	if err != nil {
		return nil, "", err
	}

	allowed, err := project.CheckUserAccess(ctx.UserContext(), c.Groups, caller, action, scope, entity)
	if err != nil {
		return nil, "", err
	}
	if !allowed {
		return nil, "", apperror.Forbidden("insufficient permissions")
	}
	return project, caller, nil
}

func (c *ProjectController) callerIsOwner(ctx *fiber.Ctx, project *Project, caller string) (bool, error) {
	return project.CheckUserAccess(ctx.UserContext(), c.Groups, caller, permission.ActionAll, permission.ScopeAll, permission.EntityAll)
}

func callerID(ctx *fiber.Ctx) (string, error) {
	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return "", apperror.Forbidden("unauthenticated")
	}
	return claims.UserID, nil
}

func pathID(ctx *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(ctx.Params("id"))
	if err != nil {
		return primitive.NilObjectID, apperror.BadRequest("invalid project id")
	}
	return id, nil
}

func respondError(ctx *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	if copy := apperror.ServerCopyOf(err); copy != nil {
		body["current"] = copy
	}
	return ctx.Status(apperror.HTTPStatus(err)).JSON(body)
}
