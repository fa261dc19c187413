package actors

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/shared"
)

// RepositoryPort defines data access methods for the actor directory.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (Actor, error)
	List(ctx context.Context) ([]Actor, error)
	ListByRoles(ctx context.Context, roles []perm.Role) ([]Actor, error)
	ListIDsByRoles(ctx context.Context, roles []perm.Role) ([]uuid.UUID, error)
	UpdatePermissions(ctx context.Context, id uuid.UUID, perms perm.PermissionSet) error
}

// Service handles actor directory business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one actor.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Actor, error) {
	return s.repo.Get(ctx, id)
}

// List returns all actors.
func (s *Service) List(ctx context.Context) ([]Actor, error) {
	return s.repo.List(ctx)
}

// ListByRoles returns active actors holding one of the given roles.
func (s *Service) ListByRoles(ctx context.Context, roles []perm.Role) ([]Actor, error) {
	return s.repo.ListByRoles(ctx, roles)
}

// ListIDsByRoles returns the ids of active actors holding one of the given
// roles. This is the broadcast target resolution used by the notification
// dispatcher.
func (s *Service) ListIDsByRoles(ctx context.Context, roles []perm.Role) ([]uuid.UUID, error) {
	return s.repo.ListIDsByRoles(ctx, roles)
}

// Identity resolves the trusted identity tuple for the auth middleware.
func (s *Service) Identity(ctx context.Context, actorID uuid.UUID) (perm.Identity, error) {
	actor, err := s.repo.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return perm.Identity{}, shared.ErrUnknownActor
		}
		return perm.Identity{}, err
	}
	return actor.Identity(), nil
}

// ApplyPermissions stores a replacement permission set for the target actor.
// The caller is responsible for having routed the change through the action
// ledger first.
func (s *Service) ApplyPermissions(ctx context.Context, target uuid.UUID, perms perm.PermissionSet) error {
	return s.repo.UpdatePermissions(ctx, target, perms.Clone())
}
