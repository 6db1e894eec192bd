package bot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefixSession = "session:"

// RedisStore keeps sessions in redis so a bot restart does not drop
// in-flight conversations. Values are JSON with a TTL; expiry shows up to
// the engine as an absent session.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, actorID int64) (*Session, error) {
	key := fmt.Sprintf("%s%d", keyPrefixSession, actorID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := fmt.Sprintf("%s%d", keyPrefixSession, s.ActorID)
	return r.client.Set(ctx, key, data, sessionTTL).Err()
}

func (r *RedisStore) Delete(ctx context.Context, actorID int64) error {
	key := fmt.Sprintf("%s%d", keyPrefixSession, actorID)
	return r.client.Del(ctx, key).Err()
}
