package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// RedisStore keeps the snapshot as a JSON string under CartKey.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ domain.CartPersister = (*RedisStore)(nil)

// NewRedisStore wraps client; closing the store closes the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: CartKey}
}

func (r *RedisStore) Load(ctx context.Context) (domain.CartSnapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CartSnapshot{}, nil
	}
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("redis get failed: %w", err)
	}
	return decodeSnapshot(data)
}

func (r *RedisStore) Save(ctx context.Context, snapshot domain.CartSnapshot) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
