package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/retrouvio/retrouvio/internal/perm"
)

type memoryNotifyRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]Notification
	insertErr error
	inserts   int
}

func newMemoryNotifyRepo() *memoryNotifyRepo {
	return &memoryNotifyRepo{items: make(map[uuid.UUID]Notification)}
}

func (r *memoryNotifyRepo) Insert(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserts++
	r.items[n.ID] = n
	return nil
}

func (r *memoryNotifyRepo) MarkRead(_ context.Context, id, recipient uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.Recipient != recipient {
		return ErrNotFound
	}
	n.Read = true
	r.items[id] = n
	return nil
}

func (r *memoryNotifyRepo) MarkAllRead(_ context.Context, recipient uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flagged int64
	for id, n := range r.items {
		if n.Recipient == recipient && !n.Read {
			n.Read = true
			r.items[id] = n
			flagged++
		}
	}
	return flagged, nil
}

func (r *memoryNotifyRepo) UnreadCount(_ context.Context, recipient uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.Recipient == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotifyRepo) ListByRecipient(_ context.Context, recipient uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Notification
	for _, n := range r.items {
		if n.Recipient != recipient {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *memoryNotifyRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, n := range r.items {
		if n.ExpiresAt != nil && n.ExpiresAt.Before(before) {
			delete(r.items, id)
			purged++
		}
	}
	return purged, nil
}

func (r *memoryNotifyRepo) count(recipient uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int
	for _, n := range r.items {
		if n.Recipient == recipient {
			count++
		}
	}
	return count
}

type pushRecord struct {
	recipient uuid.UUID
	event     string
}

type fakePusher struct {
	mu      sync.Mutex
	online  map[uuid.UUID]bool
	pushes  []pushRecord
	pushErr map[uuid.UUID]error
}

func newFakePusher(online ...uuid.UUID) *fakePusher {
	p := &fakePusher{online: make(map[uuid.UUID]bool), pushErr: make(map[uuid.UUID]error)}
	for _, id := range online {
		p.online[id] = true
	}
	return p
}

func (p *fakePusher) IsOnline(actorID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[actorID]
}

func (p *fakePusher) Push(_ context.Context, actorID uuid.UUID, event string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pushErr[actorID]; err != nil {
		return err
	}
	p.pushes = append(p.pushes, pushRecord{recipient: actorID, event: event})
	return nil
}

func (p *fakePusher) pushesTo(actorID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var count int
	for _, rec := range p.pushes {
		if rec.recipient == actorID {
			count++
		}
	}
	return count
}

type fakeDirectory struct {
	byRole map[perm.Role][]uuid.UUID
	err    error
}

func (d fakeDirectory) ListIDsByRoles(_ context.Context, roles []perm.Role) ([]uuid.UUID, error) {
	if d.err != nil {
		return nil, d.err
	}
	var ids []uuid.UUID
	for _, role := range roles {
		ids = append(ids, d.byRole[role]...)
	}
	return ids, nil
}

type fakeRooms struct {
	members map[string][]uuid.UUID
	err     error
}

func (r fakeRooms) Members(_ context.Context, roomID string) ([]uuid.UUID, error) {
	if r.err != nil {
		return nil, r.err
	}
	members, ok := r.members[roomID]
	if !ok {
		return nil, ErrUnknownRoom
	}
	return members, nil
}

func TestNotifyPersistsBeforePush(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher(recipient)
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher})

	n, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match", Title: "Possible match"})
	require.NoError(t, err)
	require.Equal(t, PriorityMedium, n.Priority, "missing priority defaults to medium")
	require.Equal(t, 1, repo.count(recipient))
	require.Equal(t, 1, pusher.pushesTo(recipient))
	require.Equal(t, EventNotification, pusher.pushes[0].event)
}

func TestNotifyOfflineRecipientPersistsOnly(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher})

	_, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.count(recipient))
	require.Zero(t, pusher.pushesTo(recipient))
}

func TestNotifyPushFailureIsNotFatal(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher(recipient)
	pusher.pushErr[recipient] = errors.New("connection reset")
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher})

	_, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
	require.NoError(t, err, "the durable record is the recovery path")
	require.Equal(t, 1, repo.count(recipient))
}

func TestNotifyPersistenceFailureIsFatal(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	repo.insertErr = errors.New("connection refused")
	pusher := newFakePusher(recipient)
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher})

	_, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
	require.ErrorIs(t, err, ErrPersistence)
	require.Zero(t, pusher.pushesTo(recipient), "no push without a durable record")
}

func TestBroadcastToRoleExcludesInitiator(t *testing.T) {
	initiator := uuid.New()
	other := uuid.New()
	offline := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher(initiator, other)
	directory := fakeDirectory{byRole: map[perm.Role][]uuid.UUID{
		perm.RoleAdmin: {initiator, other, offline},
	}}
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher, Directory: directory})

	err := svc.BroadcastToRole(context.Background(), []perm.Role{perm.RoleAdmin}, Payload{Type: "alert", Priority: PriorityUrgent}, initiator)
	require.NoError(t, err)

	require.Zero(t, repo.count(initiator), "initiator must be excluded")
	require.Equal(t, 1, repo.count(other))
	require.Equal(t, 1, repo.count(offline), "offline targets still get the durable record")
	require.Equal(t, 1, pusher.pushesTo(other))
	require.Zero(t, pusher.pushesTo(offline))
}

func TestBroadcastToRolePushFailuresAreIsolated(t *testing.T) {
	flaky := uuid.New()
	healthy := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher(flaky, healthy)
	pusher.pushErr[flaky] = errors.New("slow consumer")
	directory := fakeDirectory{byRole: map[perm.Role][]uuid.UUID{
		perm.RolePolice: {flaky, healthy},
	}}
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher, Directory: directory})

	err := svc.BroadcastToRole(context.Background(), []perm.Role{perm.RolePolice}, Payload{Type: "alert"}, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, 1, repo.count(flaky))
	require.Equal(t, 1, repo.count(healthy))
	require.Equal(t, 1, pusher.pushesTo(healthy))
}

func TestBroadcastToRolePersistenceFailureAborts(t *testing.T) {
	target := uuid.New()
	repo := newMemoryNotifyRepo()
	repo.insertErr = errors.New("out of disk")
	directory := fakeDirectory{byRole: map[perm.Role][]uuid.UUID{
		perm.RoleAdmin: {target},
	}}
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher(), Directory: directory})

	err := svc.BroadcastToRole(context.Background(), []perm.Role{perm.RoleAdmin}, Payload{Type: "alert"}, uuid.Nil)
	require.ErrorIs(t, err, ErrPersistence)
}

func TestBroadcastToRoomIsEphemeral(t *testing.T) {
	sender := uuid.New()
	online := uuid.New()
	offline := uuid.New()
	repo := newMemoryNotifyRepo()
	pusher := newFakePusher(sender, online)
	rooms := fakeRooms{members: map[string][]uuid.UUID{
		"annonce-42": {sender, online, offline},
	}}
	svc := NewService(ServiceConfig{Repo: repo, Pusher: pusher, Rooms: rooms})

	svc.BroadcastToRoom(context.Background(), "annonce-42", "chat-message", map[string]string{"body": "hello"}, sender)

	require.Zero(t, repo.inserts, "room events are never persisted")
	require.Equal(t, 1, pusher.pushesTo(online))
	require.Zero(t, pusher.pushesTo(sender), "sender is excluded")
	require.Zero(t, pusher.pushesTo(offline))
}

func TestBroadcastToRoomResolutionFailureIsSwallowed(t *testing.T) {
	svc := NewService(ServiceConfig{
		Repo:   newMemoryNotifyRepo(),
		Pusher: newFakePusher(),
		Rooms:  fakeRooms{err: errors.New("redis down")},
	})
	// Must not panic or propagate; delivery simply does not happen.
	svc.BroadcastToRoom(context.Background(), "annonce-42", "chat-message", nil, uuid.Nil)
}

func TestMarkAllReadResetsUnreadCount(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher()})

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(context.Background(), recipient)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	require.NoError(t, svc.MarkAllRead(context.Background(), recipient))

	count, err = svc.UnreadCount(context.Background(), recipient)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMarkReadIsRecipientScoped(t *testing.T) {
	recipient := uuid.New()
	stranger := uuid.New()
	repo := newMemoryNotifyRepo()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher()})

	n, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(context.Background(), n.ID, stranger), ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), n.ID, recipient))
}

func TestListForRecipientFiltersUnread(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher()})

	first, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match", Title: "first"})
	require.NoError(t, err)
	_, err = svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match", Title: "second"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(context.Background(), first.ID, recipient))

	unread, page, err := svc.ListForRecipient(context.Background(), recipient, true, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Len(t, unread, 1)
	require.Equal(t, "second", unread[0].Title)

	all, page, err := svc.ListForRecipient(context.Background(), recipient, false, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, all, 2)
}

func TestPurgeExpired(t *testing.T) {
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher()})

	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match", ExpiresAt: &past})
	require.NoError(t, err)
	_, err = svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"})
	require.NoError(t, err)

	purged, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
	require.Equal(t, 1, repo.count(recipient), "unexpired rows survive the purge")
}
