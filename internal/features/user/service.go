package user

import (
	"context"
	"strings"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/config"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/pkg/utils"

	"go.uber.org/zap"
)

// StaleInviteAge is how long a temporary invitee record survives without
// being accepted.
const StaleInviteAge = 30 * 24 * time.Hour

type UserService interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByInviteCode(ctx context.Context, code string) (*User, error)
	CreateInvitee(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, u *User) error
	PurgeStaleInvitees(ctx context.Context) error
	// Resolve implements transcription.AgentResolver
	Resolve(ctx context.Context, userID string) (string, error)
}

type UserServiceImpl struct {
	UserRepo UserRepository
	cfg      *config.Config
	logger   *zap.Logger
}

func NewUserService(userRepo UserRepository, cfg *config.Config, logger *zap.Logger) UserService {
	return &UserServiceImpl{UserRepo: userRepo, cfg: cfg, logger: logger}
}

func (s *UserServiceImpl) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.UserRepo.FindByID(ctx, id)
}

func (s *UserServiceImpl) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserServiceImpl) GetUserByInviteCode(ctx context.Context, code string) (*User, error) {
	return s.UserRepo.FindByInviteCode(ctx, code)
}

// CreateInvitee makes the placeholder record granting project access to an
// email address that has never logged in.
func (s *UserServiceImpl) CreateInvitee(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.BadRequest("invalid email address")
	}

	now := time.Now()
	invitee := &User{
		Email:       email,
		IsTemporary: true,
		InviteCode:  utils.NewInviteCode(),
		InvitedAt:   &now,
	}
	if err := s.UserRepo.Create(ctx, invitee); err != nil {
		return nil, err
	}
	invitee.Agent = s.agentURI(invitee.ID.Hex())
	return invitee, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, u *User) error {
	return s.UserRepo.Delete(ctx, u.ID)
}

func (s *UserServiceImpl) PurgeStaleInvitees(ctx context.Context) error {
	n, err := s.UserRepo.DeleteStaleInvitees(ctx, time.Now().Add(-StaleInviteAge))
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged stale invitees", zap.Int64("count", n))
	}
	return nil
}

// Resolve returns the agent URI stamped on documents a user promotes to the
// annotation store.
func (s *UserServiceImpl) Resolve(ctx context.Context, userID string) (string, error) {
	u, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) || apperror.IsKind(err, apperror.KindBadRequest) {
			// ids from external identity providers have no local record
			return s.agentURI(userID), nil
		}
		return "", err
	}
	if u.Agent != "" {
		return u.Agent, nil
	}
	return s.agentURI(u.ID.Hex()), nil
}

func (s *UserServiceImpl) agentURI(id string) string {
	return strings.TrimSuffix(s.cfg.ServicesURL, "/") + "/agent/" + id
}
