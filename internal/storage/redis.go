package storage

import (
	"context"
	"errors"
	"fmt"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as plain redis strings under "<namespace>:<key>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ KV = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, prefix: namespace + ":"}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storeerrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrStorageRead, err)
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageWrite, err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageRemove, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
