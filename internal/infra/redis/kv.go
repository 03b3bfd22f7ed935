package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// KV adapts a Redis client to the leaderboard's durable key-value port.
// Values are persisted without expiry; the leaderboard is meant to outlive
// sessions.
type KV struct {
	client *redis.Client
}

func NewKV(client *redis.Client) *KV {
	return &KV{client: client}
}

func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := kv.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	return kv.client.Set(ctx, key, value, 0).Err()
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	return kv.client.Del(ctx, key).Err()
}
