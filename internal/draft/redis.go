package draft

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"talentline/internal/domain"
)

const DefaultRedisPrefix = "talentline:draft:"

type redisDraftClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis shares drafts between devices of the same identity. A zero TTL keeps
// drafts until cleared.
type Redis struct {
	client redisDraftClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redisDraftClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id string) string {
	return r.prefix + normKey(id)
}

func (r *Redis) Load(ctx context.Context, id string) (domain.ApplicationRecord, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ApplicationRecord{}, false, nil
	}
	if err != nil {
		return domain.ApplicationRecord{}, false, err
	}
	rec, err := decode(data)
	return rec, err == nil, err
}

func (r *Redis) Save(ctx context.Context, id string, rec domain.ApplicationRecord) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(id), data, r.ttl).Err()
}

func (r *Redis) Clear(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
