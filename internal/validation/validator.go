package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/config"
)

var ErrInvalidAPIKey = errors.New("invalid API key")

const (
	minKeyLength = 12
	keyCacheTTL  = 5 * time.Minute
)

// querier is the subset of *pgxpool.Pool the validator uses
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Close()
}

// Validator authenticates project keys against Postgres and enforces a
// per-project rate limit in Redis. Without a Postgres DSN every request is
// accepted; without Redis there is no key cache and no rate limit.
type Validator struct {
	db    querier
	redis *redis.Client
	limit int
}

func NewValidator(cfg *config.Config) (*Validator, error) {
	v := &Validator{limit: cfg.RateLimit.RequestsPerSecond}

	if cfg.Postgres.DSN != "" {
		db, err := pgxpool.New(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		v.db = db
	} else {
		log.Warn().Msg("postgres.dsn not set, API key validation disabled")
	}

	if cfg.Redis.Addr != "" {
		v.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	return v, nil
}

// Enabled reports whether keys are checked at all
func (v *Validator) Enabled() bool {
	return v.db != nil
}

// ValidateAPIKey resolves a project key to its project ID
func (v *Validator) ValidateAPIKey(ctx context.Context, apiKey string) (string, error) {
	if v.db == nil {
		return "", nil
	}
	if len(apiKey) < minKeyLength {
		return "", ErrInvalidAPIKey
	}

	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	// Check cache first, keyed by the full hash
	cacheKey := "apikey:" + keyHash
	if v.redis != nil {
		if projectID, err := v.redis.Get(ctx, cacheKey).Result(); err == nil {
			return projectID, nil
		}
	}

	var id string
	err := v.db.QueryRow(ctx, `
		SELECT project_id::text FROM api_keys
		WHERE key_hash = $1 AND is_active = true
		AND (expires_at IS NULL OR expires_at > NOW())
	`, keyHash).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidAPIKey
		}
		return "", fmt.Errorf("lookup api key: %w", err)
	}

	if v.redis != nil {
		v.redis.Set(ctx, cacheKey, id, keyCacheTTL)
	}

	if _, err := v.db.Exec(ctx, `
		UPDATE api_keys
		SET last_used_at = NOW(), request_count = request_count + 1
		WHERE key_hash = $1
	`, keyHash); err != nil {
		log.Warn().Err(err).Str("project_id", id).Msg("Failed to update api key usage")
	}

	return id, nil
}

// CheckRateLimit counts a request against the project's one-second window
func (v *Validator) CheckRateLimit(ctx context.Context, projectID string) bool {
	if v.redis == nil || v.limit <= 0 {
		return true
	}
	key := "ratelimit:" + projectID

	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return true // Allow on error
	}

	// Set expiry on first request
	if count == 1 {
		v.redis.Expire(ctx, key, time.Second)
	}

	return count <= int64(v.limit)
}

func (v *Validator) Close() {
	if v.db != nil {
		v.db.Close()
	}
	if v.redis != nil {
		v.redis.Close()
	}
}
