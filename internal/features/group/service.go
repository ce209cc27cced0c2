package group

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GroupService loads the aggregate, applies in-memory mutators and flushes
// once per request. Every mutator below runs Validate before the write.
type GroupService interface {
	CreateGroup(ctx context.Context, creator string) (*Group, error)
	GetGroupByID(ctx context.Context, id primitive.ObjectID) (*Group, error)
	GroupsForMember(ctx context.Context, memberID string) ([]Group, error)
	Save(ctx context.Context, group *Group) error
	AddMember(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error)
	SetMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error)
	AddMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error)
	RemoveMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string) (*Group, error)
	RemoveMember(ctx context.Context, groupID primitive.ObjectID, memberID string, voluntary bool) (*Group, error)
	TransferMembership(ctx context.Context, groupID primitive.ObjectID, sourceID, targetID string) (*Group, error)
	UpdateCustomRoles(ctx context.Context, groupID primitive.ObjectID, roles map[string]any) (*Group, error)
	AddCustomRoles(ctx context.Context, groupID primitive.ObjectID, roles map[string]any) (*Group, error)
	RemoveCustomRoles(ctx context.Context, groupID primitive.ObjectID, names []string) (*Group, error)
}

type GroupServiceImpl struct {
	repo   GroupRepository
	logger *zap.Logger
}

func NewGroupService(repo GroupRepository, logger *zap.Logger) GroupService {
	return &GroupServiceImpl{repo: repo, logger: logger}
}

func (s *GroupServiceImpl) CreateGroup(ctx context.Context, creator string) (*Group, error) {
	group := NewGroup(creator)
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *GroupServiceImpl) GetGroupByID(ctx context.Context, id primitive.ObjectID) (*Group, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *GroupServiceImpl) GroupsForMember(ctx context.Context, memberID string) ([]Group, error) {
	return s.repo.FindByMember(ctx, memberID)
}

func (s *GroupServiceImpl) Save(ctx context.Context, group *Group) error {
	group.Validate()
	return s.repo.Update(ctx, group)
}

func (s *GroupServiceImpl) AddMember(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.AddMember(memberID, roles, allowOwner)
	})
}

func (s *GroupServiceImpl) SetMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.SetMemberRoles(memberID, roles, allowOwner)
	})
}

func (s *GroupServiceImpl) AddMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string, allowOwner bool) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.AddMemberRoles(memberID, roles, allowOwner)
	})
}

func (s *GroupServiceImpl) RemoveMemberRoles(ctx context.Context, groupID primitive.ObjectID, memberID string, roles []string) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.RemoveMemberRoles(memberID, roles)
	})
}

func (s *GroupServiceImpl) RemoveMember(ctx context.Context, groupID primitive.ObjectID, memberID string, voluntary bool) (*Group, error) {
	group, err := s.mutate(ctx, groupID, func(g *Group) error {
		return g.RemoveMember(memberID)
	})
	if err == nil {
		s.logger.Info("member removed from group",
			zap.String("group", groupID.Hex()),
			zap.String("member", memberID),
			zap.Bool("voluntary", voluntary))
	}
	return group, err
}

func (s *GroupServiceImpl) TransferMembership(ctx context.Context, groupID primitive.ObjectID, sourceID, targetID string) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.TransferMembership(sourceID, targetID)
	})
}

func (s *GroupServiceImpl) UpdateCustomRoles(ctx context.Context, groupID primitive.ObjectID, roles map[string]any) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.UpdateCustomRoles(roles)
	})
}

func (s *GroupServiceImpl) AddCustomRoles(ctx context.Context, groupID primitive.ObjectID, roles map[string]any) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.AddCustomRoles(roles)
	})
}

func (s *GroupServiceImpl) RemoveCustomRoles(ctx context.Context, groupID primitive.ObjectID, names []string) (*Group, error) {
	return s.mutate(ctx, groupID, func(g *Group) error {
		return g.RemoveCustomRoles(names)
	})
}

func (s *GroupServiceImpl) mutate(ctx context.Context, groupID primitive.ObjectID, fn func(*Group) error) (*Group, error) {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := fn(group); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}
