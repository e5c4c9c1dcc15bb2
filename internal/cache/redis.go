package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/examprep/internal/model"
)

const defaultKeyPrefix = "examprep:"

// Redis is a RecordCache backed by Redis, storing records as JSON.
type Redis struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	URL       string        // e.g. "redis://localhost:6379/0"
	TTL       time.Duration // 0 = no expiration
	KeyPrefix string        // default "examprep:"
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisFromClient(client, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

// Get reads and decodes a record. Any failure is reported as a miss.
func (c *Redis) Get(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, bool) {
	key := c.keyPrefix + Key(examID, lang)
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("redis cache get failed", "key", key, "error", err)
		return nil, false
	}
	var rec model.TranslationRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		slog.Warn("redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &rec, true
}

// Set encodes and stores rec.
func (c *Redis) Set(ctx context.Context, rec *model.TranslationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyPrefix+Key(rec.ExamID, rec.LanguageCode), data, c.ttl).Err()
}

// Delete removes the entry for (examID, lang).
func (c *Redis) Delete(ctx context.Context, examID int64, lang string) error {
	return c.client.Del(ctx, c.keyPrefix+Key(examID, lang)).Err()
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}

var _ RecordCache = (*Redis)(nil)
