package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

// Entry is the cached form of a conversion result
type Entry struct {
	ConversionID string   `json:"conversion_id"`
	Script       string   `json:"script"`
	StartURL     string   `json:"start_url"`
	Target       string   `json:"target"`
	EventCount   int      `json:"event_count"`
	ActionCount  int      `json:"action_count"`
	SkippedCount int      `json:"skipped_count"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ScriptCache stores generated scripts in Redis keyed by recording content.
// A nil client turns every call into a miss.
type ScriptCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewScriptCache connects to Redis. An empty address disables caching.
func NewScriptCache(redisCfg config.RedisConfig, ttl time.Duration) *ScriptCache {
	if redisCfg.Addr == "" {
		return &ScriptCache{ttl: ttl}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	return &ScriptCache{
		redis: rdb,
		ttl:   ttl,
	}
}

// Key derives the cache key for a recording body rendered with the given
// target and test name
func Key(body []byte, target, testName string) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte{0})
	h.Write([]byte(testName))
	return "script:" + target + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached entry for key. The bool is false on a miss or
// when Redis is unavailable.
func (c *ScriptCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read script cache")
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cache entry")
		c.redis.Del(ctx, key)
		return nil, false
	}
	return &entry, true
}

// Set stores entry under key with the configured TTL
func (c *ScriptCache) Set(ctx context.Context, key string, entry *Entry) error {
	if c.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to write script cache")
		return err
	}
	return nil
}

func (c *ScriptCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
