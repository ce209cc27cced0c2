package project

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/group"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/transcription"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/user"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ProjectService interface {
	CreateProject(ctx context.Context, manifestURL, creatorID string) (*Project, error)
	GetProjectByID(ctx context.Context, id primitive.ObjectID) (*Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]Project, error)
	DeleteProject(ctx context.Context, id primitive.ObjectID) error

	AddLayer(ctx context.Context, projectID primitive.ObjectID, layer transcription.Layer, userID string) (*Project, error)
	UpdateLayer(ctx context.Context, projectID primitive.ObjectID, layer transcription.Layer, previousID string) (*Project, error)
	DeleteLayer(ctx context.Context, projectID primitive.ObjectID, layerID string) (*Project, error)

	ReorderPages(ctx context.Context, projectID primitive.ObjectID, layerID string, order []string, userID string) (*Project, error)

	CreateLine(ctx context.Context, projectID primitive.ObjectID, layerID, pageID string, line transcription.Line, userID string) (*Project, error)
	UpdateLineText(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID, text, userID string) (*Project, error)
	UpdateLineBounds(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID string, bounds transcription.Bounds, userID string) (*Project, error)
	DeleteLine(ctx context.Context, projectID primitive.ObjectID, layerID, pageID, lineID string) (*Project, error)

	SendInvite(ctx context.Context, projectID primitive.ObjectID, email string, roles []string, allowOwner bool) (*Project, error)
	AcceptInvite(ctx context.Context, projectID primitive.ObjectID, inviteCode, userID string) (*Project, error)
	DeclineInvite(ctx context.Context, projectID primitive.ObjectID, inviteCode string) error
}

// InviteMailer is the slice of the mail service the invite flow needs.
// Satisfied by emails.Service.
type InviteMailer interface {
	SendProjectInvite(ctx context.Context, to, projectLabel, inviteCode string, projectID primitive.ObjectID) error
}

type ProjectServiceImpl struct {
	repo    ProjectRepository
	groups  group.GroupService
	users   user.UserService
	mail    InviteMailer
	store   transcription.Store
	agents  transcription.AgentResolver
	factory *ProjectFactory
	cfg     *config.Config
	logger  *zap.Logger
}

func NewProjectService(
	repo ProjectRepository,
	groups group.GroupService,
	users user.UserService,
	mail InviteMailer,
	store transcription.Store,
	factory *ProjectFactory,
	cfg *config.Config,
	logger *zap.Logger,
) ProjectService {
	return &ProjectServiceImpl{
		repo:    repo,
		groups:  groups,
		users:   users,
		mail:    mail,
		store:   store,
		agents:  users,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *ProjectServiceImpl) CreateProject(ctx context.Context, manifestURL, creatorID string) (*Project, error) {
	project, err := s.factory.FromManifest(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.Resolve(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	project.Creator = agent
	for i := range project.Layers {
		project.Layers[i].Creator = agent
	}

	g, err := s.groups.CreateGroup(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	project.Group = g.ID

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created",
		zap.String("project", project.ID.Hex()),
		zap.String("manifest", manifestURL),
		zap.String("creator", creatorID))
	return project, nil
}

func (s *ProjectServiceImpl) GetProjectByID(ctx context.Context, id primitive.ObjectID) (*Project, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Normalize(s.store.IDBase())
	return project, nil
}

func (s *ProjectServiceImpl) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	groups, err := s.groups.GroupsForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	ids := make([]primitive.ObjectID, len(groups))
	for i := range groups {
		ids[i] = groups[i].ID
	}
	return s.repo.FindByGroups(ctx, ids)
}

func (s *ProjectServiceImpl) DeleteProject(ctx context.Context, id primitive.ObjectID) error {
	project, err := s.GetProjectByID(ctx, id)
	if err != nil {
		return err
	}
	for i := range project.Layers {
		project.Layers[i].Delete(ctx, s.store, s.logger)
	}
	return s.repo.Delete(ctx, id)
}

// AddLayer appends a validated layer, disambiguating duplicate labels with a
// numeric suffix, and persists it through the annotation store.
func (s *ProjectServiceImpl) AddLayer(ctx context.Context, projectID primitive.ObjectID, layer transcription.Layer, userID string) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if layer.ID == "" {
		layer.ID = s.mintLocalID("layer")
	}
	if err := validateLayer(&layer); err != nil {
		return nil, err
	}
	if _, err := project.FindLayer(layer.ID); err == nil {
		return nil, apperror.Conflict("layer %s already exists in project %s", layer.ID, projectID.Hex())
	}

	agent, err := s.agents.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	layer.Creator = agent
	layer.Label = dedupeLabel(project, layer.Label)

	project.Layers = append(project.Layers, layer)
	target := &project.Layers[len(project.Layers)-1]
	if err := s.updateLayerAndProject(ctx, project, target); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateLayer replaces the layer previously stored under previousID. The new
// shape is validated before anything is written.
func (s *ProjectServiceImpl) UpdateLayer(ctx context.Context, projectID primitive.ObjectID, layer transcription.Layer, previousID string) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := validateLayer(&layer); err != nil {
		return nil, err
	}

	existing, err := project.FindLayer(previousID)
	if err != nil {
		return nil, err
	}
	if layer.Creator == "" {
		layer.Creator = existing.Creator
	}
	*existing = layer
	if err := s.updateLayerAndProject(ctx, project, existing); err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteLayer removes the layer from the project. The external documents are
// removed best-effort; failure to clean the annotation store never blocks
// the local removal.
func (s *ProjectServiceImpl) DeleteLayer(ctx context.Context, projectID primitive.ObjectID, layerID string) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	layer, err := project.FindLayer(layerID)
	if err != nil {
		return nil, err
	}

	layer.Delete(ctx, s.store, s.logger)
	if err := project.RemoveLayer(layerID); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// SendInvite grants project access to an email address. Known addresses
// join the group directly; unknown ones get a placeholder identity, a
// single-use code and a mail with accept and decline links.
func (s *ProjectServiceImpl) SendInvite(ctx context.Context, projectID primitive.ObjectID, email string, roles []string, allowOwner bool) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []string{permission.RoleContributor}
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if _, err := s.groups.AddMember(ctx, project.Group, existing.ID.Hex(), roles, allowOwner); err != nil {
			return nil, err
		}
		return project, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	invitee, err := s.users.CreateInvitee(ctx, email)
	if err != nil {
		return nil, err
	}
	if _, err := s.groups.AddMember(ctx, project.Group, invitee.ID.Hex(), roles, allowOwner); err != nil {
		return nil, err
	}
	if err := s.mail.SendProjectInvite(ctx, email, project.Label, invitee.InviteCode, project.ID); err != nil {
		return nil, err
	}
	s.logger.Info("invite sent",
		zap.String("project", projectID.Hex()),
		zap.String("invitee", invitee.ID.Hex()))
	return project, nil
}

// AcceptInvite reconciles the placeholder identity into the authenticated
// one and retires the invitee record.
func (s *ProjectServiceImpl) AcceptInvite(ctx context.Context, projectID primitive.ObjectID, inviteCode, userID string) (*Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.users.GetUserByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	if _, err := s.groups.TransferMembership(ctx, project.Group, invitee.ID.Hex(), userID); err != nil {
		return nil, err
	}
	if err := s.users.DeleteUser(ctx, invitee); err != nil {
		s.logger.Warn("leaving stale invitee record",
			zap.String("invitee", invitee.ID.Hex()), zap.Error(err))
	}
	return project, nil
}

// DeclineInvite revokes the placeholder's membership. Cleanup is
// best-effort: a decline must always succeed from the invitee's point of
// view.
func (s *ProjectServiceImpl) DeclineInvite(ctx context.Context, projectID primitive.ObjectID, inviteCode string) error {
	invitee, err := s.users.GetUserByInviteCode(ctx, inviteCode)
	if err != nil {
		return err
	}

	project, err := s.GetProjectByID(ctx, projectID)
	if err == nil {
		if _, err := s.groups.RemoveMember(ctx, project.Group, invitee.ID.Hex(), true); err != nil {
			s.logger.Warn("declined invitee still in group",
				zap.String("invitee", invitee.ID.Hex()), zap.Error(err))
		}
	}
	if err := s.users.DeleteUser(ctx, invitee); err != nil {
		s.logger.Warn("leaving stale invitee record",
			zap.String("invitee", invitee.ID.Hex()), zap.Error(err))
	}
	return nil
}

func (s *ProjectServiceImpl) persist(ctx context.Context, p *Project) error {
	return s.repo.Update(ctx, p)
}

func (s *ProjectServiceImpl) mintLocalID(kind string) string {
	return strings.TrimSuffix(s.cfg.ServicesURL, "/") + "/" + kind + "/" + primitive.NewObjectID().Hex()
}

// validateLayer rejects layers whose shape would corrupt the aggregate:
// every id and target must be an absolute URI and every node needs a label.
func validateLayer(l *transcription.Layer) error {
	if strings.TrimSpace(l.Label) == "" {
		return apperror.BadRequest("layer label is required")
	}
	if !isAbsoluteURI(l.ID) {
		return apperror.BadRequest("layer id %q is not an absolute URI", l.ID)
	}
	for i := range l.Pages {
		p := &l.Pages[i]
		if strings.TrimSpace(p.Label) == "" {
			return apperror.BadRequest("page %d is missing a label", i)
		}
		if !isAbsoluteURI(p.ID) {
			return apperror.BadRequest("page id %q is not an absolute URI", p.ID)
		}
		if !isAbsoluteURI(p.Target) {
			return apperror.BadRequest("page target %q is not an absolute URI", p.Target)
		}
	}
	return nil
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && u.Host != ""
}

// dedupeLabel appends a numeric suffix when another layer already carries
// the label.
func dedupeLabel(p *Project, label string) string {
	taken := make(map[string]bool, len(p.Layers))
	for i := range p.Layers {
		taken[p.Layers[i].Label] = true
	}
	if !taken[label] {
		return label
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", label, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
