// Package notify persists notification records and performs best-effort live
// push to connected recipients. Persistence always happens before any push of
// the same notification: the durable record, not redelivery, is the recovery
// path for a missed push.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/shared"
)

// EventNotification is the live event name used for durable notifications.
const EventNotification = "notification"

// Repository defines persistence for notifications.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	MarkRead(ctx context.Context, id, recipient uuid.UUID) error
	MarkAllRead(ctx context.Context, recipient uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error)
	ListByRecipient(ctx context.Context, recipient uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Pusher delivers ephemeral events to connected actors.
type Pusher interface {
	IsOnline(actorID uuid.UUID) bool
	Push(ctx context.Context, actorID uuid.UUID, event string, payload any) error
}

// Directory resolves broadcast targets by role.
type Directory interface {
	ListIDsByRoles(ctx context.Context, roles []perm.Role) ([]uuid.UUID, error)
}

// RoomResolver resolves room membership. Owned by the external chat
// collaborator; treated as a black box returning actor ids.
type RoomResolver interface {
	Members(ctx context.Context, roomID string) ([]uuid.UUID, error)
}

// Metrics counts dispatcher outcomes. Implemented by the observability
// package; a nil Metrics disables counting.
type Metrics interface {
	NotificationPersisted()
	PushAttempt(result string)
	BroadcastSkip(reason string)
}

// Service is the notification dispatcher.
type Service struct {
	repo      Repository
	pusher    Pusher
	directory Directory
	rooms     RoomResolver
	cache     *UnreadCache
	logger    *slog.Logger
	metrics   Metrics
	fanout    int
	clock     func() time.Time
}

// ServiceConfig groups dispatcher dependencies.
type ServiceConfig struct {
	Repo      Repository
	Pusher    Pusher
	Directory Directory
	Rooms     RoomResolver
	Cache     *UnreadCache
	Logger    *slog.Logger
	Metrics   Metrics
	// Fanout bounds broadcast parallelism; zero means 8.
	Fanout int
}

// NewService constructs the dispatcher.
func NewService(cfg ServiceConfig) *Service {
	fanout := cfg.Fanout
	if fanout <= 0 {
		fanout = 8
	}
	return &Service{
		repo:      cfg.Repo,
		pusher:    cfg.Pusher,
		directory: cfg.Directory,
		rooms:     cfg.Rooms,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		fanout:    fanout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Notify persists a notification for the recipient and, if they are online,
// pushes it over their current connection. The push is attempted only after
// the durable write succeeds; a push failure is logged, never returned.
func (s *Service) Notify(ctx context.Context, recipient uuid.UUID, p Payload) (Notification, error) {
	n := Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Priority:  p.Priority,
		ExpiresAt: p.ExpiresAt,
		CreatedAt: s.clock(),
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return Notification{}, fmt.Errorf("%w: insert: %v", ErrPersistence, err)
	}
	if s.metrics != nil {
		s.metrics.NotificationPersisted()
	}
	s.cache.Invalidate(ctx, recipient)
	s.pushLive(ctx, n)
	return n, nil
}

func (s *Service) pushLive(ctx context.Context, n Notification) {
	if s.pusher == nil || !s.pusher.IsOnline(n.Recipient) {
		return
	}
	if err := s.pusher.Push(ctx, n.Recipient, EventNotification, toEventPayload(n)); err != nil {
		if s.metrics != nil {
			s.metrics.PushAttempt("failure")
		}
		if s.logger != nil {
			s.logger.Warn("live push failed",
				slog.String("recipient", n.Recipient.String()),
				slog.String("notification", n.ID.String()),
				slog.Any("error", err))
		}
		return
	}
	if s.metrics != nil {
		s.metrics.PushAttempt("success")
	}
}

// BroadcastToRole persists one notification per active actor holding one of
// the given roles (skipping exclude) and pushes live to those online. Push
// failures are isolated per target; a failed durable write aborts the
// remaining fan-out and propagates.
func (s *Service) BroadcastToRole(ctx context.Context, roles []perm.Role, p Payload, exclude uuid.UUID) error {
	targets, err := s.directory.ListIDsByRoles(ctx, roles)
	if err != nil {
		return fmt.Errorf("notify: resolve roles: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, target := range targets {
		if target == exclude {
			continue
		}
		g.Go(func() error {
			if _, err := s.Notify(gctx, target, p); err != nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// BroadcastToRoom pushes an ephemeral event to the online members of a room.
// Nothing is persisted. Resolution and per-member push failures are logged
// and swallowed so the remaining members still receive delivery.
func (s *Service) BroadcastToRoom(ctx context.Context, roomID, event string, payload any, exclude uuid.UUID) {
	members, err := s.rooms.Members(ctx, roomID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.BroadcastSkip("room-resolution")
		}
		if s.logger != nil {
			s.logger.Warn("room resolution failed",
				slog.String("room", roomID),
				slog.Any("error", err))
		}
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, member := range members {
		if member == exclude || !s.pusher.IsOnline(member) {
			continue
		}
		g.Go(func() error {
			if err := s.pusher.Push(gctx, member, event, payload); err != nil {
				if s.metrics != nil {
					s.metrics.PushAttempt("failure")
				}
				if s.logger != nil {
					s.logger.Warn("room push failed",
						slog.String("room", roomID),
						slog.String("member", member.String()),
						slog.Any("error", err))
				}
				return nil
			}
			if s.metrics != nil {
				s.metrics.PushAttempt("success")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// MarkRead flags one notification as read for its recipient.
func (s *Service) MarkRead(ctx context.Context, id, recipient uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, recipient); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, recipient)
	return nil
}

// MarkAllRead flags every unread notification of the recipient as read.
func (s *Service) MarkAllRead(ctx context.Context, recipient uuid.UUID) error {
	if _, err := s.repo.MarkAllRead(ctx, recipient); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, recipient)
	return nil
}

// UnreadCount returns the recipient's unread total, served from the cache
// when warm.
func (s *Service) UnreadCount(ctx context.Context, recipient uuid.UUID) (int64, error) {
	if count, ok := s.cache.Get(ctx, recipient); ok {
		return count, nil
	}
	count, err := s.repo.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, recipient, count)
	return count, nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *Service) ListForRecipient(ctx context.Context, recipient uuid.UUID, unreadOnly bool, page, perPage int) ([]Notification, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.ListByRecipient(ctx, recipient, unreadOnly, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// PurgeExpired deletes notifications past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteExpired(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	if purged > 0 && s.logger != nil {
		s.logger.Info("purged expired notifications", slog.Int64("count", purged))
	}
	return purged, nil
}

func toEventPayload(n Notification) map[string]any {
	payload := map[string]any{
		"id":         n.ID.String(),
		"type":       n.Type,
		"title":      n.Title,
		"message":    n.Message,
		"priority":   string(n.Priority),
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}
	if n.ExpiresAt != nil {
		payload["expires_at"] = n.ExpiresAt.Format(time.RFC3339)
	}
	return payload
}
