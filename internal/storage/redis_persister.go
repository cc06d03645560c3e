package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// RedisPersister stores each kind as one Redis hash: field = cache key,
// value = the JSON-encoded CacheRecord. TTL is enforced by the cache on
// load, so hash fields carry no expiry of their own.
type RedisPersister struct {
	client *redis.Client
	prefix string
}

// NewRedisPersister connects using a redis:// URL.
func NewRedisPersister(url, prefix string) (*RedisPersister, error) {
	if url == "" {
		return nil, fmt.Errorf("redis cache engine needs storage.redis_url")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisPersisterFromClient(redis.NewClient(opt), prefix), nil
}

// NewRedisPersisterFromClient wraps an existing client.
func NewRedisPersisterFromClient(client *redis.Client, prefix string) *RedisPersister {
	if prefix == "" {
		prefix = "pokemmo:cache"
	}
	return &RedisPersister{client: client, prefix: prefix}
}

func (p *RedisPersister) hashKey(kind model.ResourceKind) string {
	return p.prefix + ":" + string(kind)
}

func (p *RedisPersister) Load(ctx context.Context, kind model.ResourceKind) ([]model.CacheRecord, error) {
	fields, err := p.client.HGetAll(ctx, p.hashKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading %s cache from redis: %w", kind, err)
	}
	out := make([]model.CacheRecord, 0, len(fields))
	for key, val := range fields {
		var rec model.CacheRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			// One bad field should not hide the rest of the hash.
			continue
		}
		rec.Key = key
		out = append(out, rec)
	}
	return out, nil
}

func (p *RedisPersister) Save(ctx context.Context, kind model.ResourceKind, records []model.CacheRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make(map[string]any, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding cache record %s: %w", rec.Key, err)
		}
		values[rec.Key] = b
	}
	if err := p.client.HSet(ctx, p.hashKey(kind), values).Err(); err != nil {
		return fmt.Errorf("saving %s cache to redis: %w", kind, err)
	}
	return nil
}

func (p *RedisPersister) Clear(ctx context.Context, kind model.ResourceKind) error {
	if err := p.client.Del(ctx, p.hashKey(kind)).Err(); err != nil {
		return fmt.Errorf("clearing %s cache in redis: %w", kind, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
