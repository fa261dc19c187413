// Package validation keeps the deferred-validation ledger: every attempted
// sensitive action becomes an auditable record whose approval life-cycle is
// tracked until a terminal decision.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/shared"
)

// Repository defines persistence for action records.
type Repository interface {
	Insert(ctx context.Context, record Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Resolve(ctx context.Context, id uuid.UUID, to Status, resolver uuid.UUID, comment string, at time.Time) (Record, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]Record, int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Record, int, error)
}

// Service orchestrates the action validation ledger.
type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// LogAction records an attempted sensitive action. Actions that require
// deferred validation for the acting identity start pending; everything else
// (super-admins, non-critical types) is approved immediately.
func (s *Service) LogAction(ctx context.Context, actor perm.Identity, t perm.ActionType, details string) (Record, error) {
	now := s.clock()
	record := Record{
		ID:          uuid.New(),
		ActionType:  t,
		RequestedBy: actor.ID,
		Details:     details,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if !perm.RequiresValidation(actor, t) {
		record.Status = StatusApproved
		resolved := now
		record.ResolvedAt = &resolved
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return Record{}, fmt.Errorf("validation: log action: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("action logged",
			slog.String("record", record.ID.String()),
			slog.String("type", string(t)),
			slog.String("actor", actor.ID.String()),
			slog.String("status", string(record.Status)))
	}
	return record, nil
}

// Approve moves a pending record to the approved terminal state. Only
// super-admins or holders of the admins/manage permission may resolve.
func (s *Service) Approve(ctx context.Context, recordID uuid.UUID, approver perm.Identity) (Record, error) {
	return s.resolve(ctx, recordID, StatusApproved, approver, "")
}

// Reject moves a pending record to the rejected terminal state, keeping the
// optional reviewer comment.
func (s *Service) Reject(ctx context.Context, recordID uuid.UUID, approver perm.Identity, comment string) (Record, error) {
	return s.resolve(ctx, recordID, StatusRejected, approver, comment)
}

func (s *Service) resolve(ctx context.Context, recordID uuid.UUID, to Status, approver perm.Identity, comment string) (Record, error) {
	if !perm.CanManageAdmins(approver) {
		return Record{}, ErrPermissionDenied
	}
	record, err := s.repo.Resolve(ctx, recordID, to, approver.ID, comment, s.clock())
	if err != nil {
		return Record{}, err
	}
	if s.logger != nil {
		s.logger.Info("action resolved",
			slog.String("record", record.ID.String()),
			slog.String("status", string(to)),
			slog.String("resolver", approver.ID.String()))
	}
	return record, nil
}

// Get fetches a single record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// Trail returns the audit trail of one actor, newest first.
func (s *Service) Trail(ctx context.Context, actorID uuid.UUID, page, perPage int) ([]Record, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	records, total, err := s.repo.ListByActor(ctx, actorID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Pending returns records awaiting a decision, oldest first.
func (s *Service) Pending(ctx context.Context, page, perPage int) ([]Record, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	records, total, err := s.repo.ListByStatus(ctx, StatusPending, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(p.Page, p.PerPage, total), nil
}
