// Package presence tracks which actors currently hold a live connection. The
// registry is the only long-lived shared mutable structure in the core; all
// mutation is key-scoped so connect/disconnect races on one actor cannot
// corrupt the current-handle invariant while different actors proceed in
// parallel.
package presence

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrOffline indicates the actor holds no live connection.
var ErrOffline = errors.New("presence: actor offline")

// Handle is the opaque send/close capability of one live connection.
type Handle interface {
	Send(ctx context.Context, event string, payload any) error
	Close(reason string)
}

const shardCount = 32

type shard struct {
	mu       sync.Mutex
	conns    map[uuid.UUID]Handle
	lastSeen map[uuid.UUID]time.Time
}

// Registry holds the live-connection map. One instance is owned by the
// serving process and injected wherever presence is needed.
type Registry struct {
	shards      [shardCount]shard
	pushTimeout time.Duration
	clock       func() time.Time
}

// NewRegistry constructs a Registry. pushTimeout bounds every live push so a
// slow or dead channel cannot block delivery to other recipients.
func NewRegistry(pushTimeout time.Duration) *Registry {
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	r := &Registry{
		pushTimeout: pushTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for i := range r.shards {
		r.shards[i].conns = make(map[uuid.UUID]Handle)
		r.shards[i].lastSeen = make(map[uuid.UUID]time.Time)
	}
	return r
}

func (r *Registry) shardFor(actorID uuid.UUID) *shard {
	h := fnv.New32a()
	_, _ = h.Write(actorID[:])
	return &r.shards[h.Sum32()%shardCount]
}

// Connect registers h as the current connection for the actor, unconditionally
// replacing any prior handle (last-connection-wins). A superseded handle is
// closed.
func (r *Registry) Connect(actorID uuid.UUID, h Handle) {
	s := r.shardFor(actorID)
	s.mu.Lock()
	prev := s.conns[actorID]
	s.conns[actorID] = h
	s.mu.Unlock()
	if prev != nil && prev != h {
		prev.Close("superseded")
	}
}

// Disconnect removes the registration only if h is still the current handle
// for the actor. A stale close event arriving after a reconnect already
// replaced the handle is a no-op. Reports whether the actor went offline.
func (r *Registry) Disconnect(actorID uuid.UUID, h Handle) bool {
	s := r.shardFor(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.conns[actorID]
	if !ok || current != h {
		return false
	}
	delete(s.conns, actorID)
	s.lastSeen[actorID] = r.clock()
	return true
}

// IsOnline reports whether the actor holds a live connection.
func (r *Registry) IsOnline(actorID uuid.UUID) bool {
	s := r.shardFor(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[actorID]
	return ok
}

// ListOnline returns the ids of every connected actor.
func (r *Registry) ListOnline() []uuid.UUID {
	var online []uuid.UUID
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for id := range s.conns {
			online = append(online, id)
		}
		s.mu.Unlock()
	}
	return online
}

// LastSeen returns when a now-offline actor disconnected. The boolean is
// false for actors that never disconnected through this registry.
func (r *Registry) LastSeen(actorID uuid.UUID) (time.Time, bool) {
	s := r.shardFor(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSeen[actorID]
	return t, ok
}

// Push delivers an ephemeral event to the actor's current connection with the
// registry's send timeout. Returns ErrOffline when no connection exists; a
// send failure is the caller's to log, never retried here.
func (r *Registry) Push(ctx context.Context, actorID uuid.UUID, event string, payload any) error {
	s := r.shardFor(actorID)
	s.mu.Lock()
	h, ok := s.conns[actorID]
	s.mu.Unlock()
	if !ok {
		return ErrOffline
	}
	sendCtx, cancel := context.WithTimeout(ctx, r.pushTimeout)
	defer cancel()
	return h.Send(sendCtx, event, payload)
}
