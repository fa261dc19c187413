package notify

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*UnreadCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewUnreadCache(client, time.Minute), mr
}

func TestUnreadCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	recipient := uuid.New()

	if _, ok := cache.Get(context.Background(), recipient); ok {
		t.Fatalf("cold cache must miss")
	}

	cache.Set(context.Background(), recipient, 7)
	count, ok := cache.Get(context.Background(), recipient)
	if !ok || count != 7 {
		t.Fatalf("expected warm hit of 7, got %d ok=%v", count, ok)
	}

	cache.Invalidate(context.Background(), recipient)
	if _, ok := cache.Get(context.Background(), recipient); ok {
		t.Fatalf("invalidated entry must miss")
	}
}

func TestUnreadCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	recipient := uuid.New()

	cache.Set(context.Background(), recipient, 3)
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(context.Background(), recipient); ok {
		t.Fatalf("entry must expire after the TTL")
	}
}

func TestUnreadCacheNilClientDegrades(t *testing.T) {
	cache := NewUnreadCache(nil, time.Minute)
	recipient := uuid.New()

	cache.Set(context.Background(), recipient, 5)
	cache.Invalidate(context.Background(), recipient)
	if _, ok := cache.Get(context.Background(), recipient); ok {
		t.Fatalf("nil client must behave as a permanent miss")
	}
}

func TestUnreadCountCachePopulation(t *testing.T) {
	cache, _ := newTestCache(t)
	recipient := uuid.New()
	repo := newMemoryNotifyRepo()
	svc := NewService(ServiceConfig{Repo: repo, Pusher: newFakePusher(), Cache: cache})

	if _, err := svc.Notify(context.Background(), recipient, Payload{Type: "annonce-match"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	count, err := svc.UnreadCount(context.Background(), recipient)
	if err != nil || count != 1 {
		t.Fatalf("expected unread count 1, got %d err=%v", count, err)
	}
	if cached, ok := cache.Get(context.Background(), recipient); !ok || cached != 1 {
		t.Fatalf("count must be cached after a read, got %d ok=%v", cached, ok)
	}

	if err := svc.MarkAllRead(context.Background(), recipient); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if _, ok := cache.Get(context.Background(), recipient); ok {
		t.Fatalf("write path must invalidate the cache")
	}
}
