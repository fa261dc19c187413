package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRoomResolver reads room membership from the set the external chat
// service maintains in Redis. Membership writes belong to that service; this
// resolver only ever reads.
type RedisRoomResolver struct {
	client *redis.Client
}

// NewRedisRoomResolver constructs a resolver.
func NewRedisRoomResolver(client *redis.Client) *RedisRoomResolver {
	return &RedisRoomResolver{client: client}
}

func roomKey(roomID string) string {
	return "room:" + roomID + ":members"
}

// Members returns the actor ids in the room. An empty or missing set reports
// ErrUnknownRoom.
func (r *RedisRoomResolver) Members(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	raw, err := r.client.SMembers(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: room members: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
	}
	members := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			continue
		}
		members = append(members, id)
	}
	return members, nil
}
