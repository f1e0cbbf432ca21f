// Package redis caches artifact existence in front of the durable store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"blog_trans_bot/internal/domain"
)

type Config struct {
	Address  string
	Password string
	DB       int
}

var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

const keyPrefix = "artifact:"

// Oracle answers existence lookups; the cache wraps one.
type Oracle interface {
	Lookup(ctx context.Context, key string) domain.Existence
}

func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// CachedOracle remembers keys known to exist. Only Found answers are cached,
// so a miss or a cache outage always falls through to the primary oracle.
type CachedOracle struct {
	client  *redis.Client
	primary Oracle
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedOracle(client *redis.Client, primary Oracle, ttl time.Duration, logger *slog.Logger) *CachedOracle {
	return &CachedOracle{
		client:  client,
		primary: primary,
		ttl:     ttl,
		logger:  logger.With("component", "existence_cache"),
	}
}

func (c *CachedOracle) Lookup(ctx context.Context, key string) domain.Existence {
	n, err := c.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
	} else if n > 0 {
		return domain.Exists()
	}

	res := c.primary.Lookup(ctx, key)
	if res.State == domain.Found {
		c.MarkStored(ctx, key)
	}
	return res
}

// MarkStored records key as present.
func (c *CachedOracle) MarkStored(ctx context.Context, key string) {
	if err := c.client.Set(ctx, keyPrefix+key, 1, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
