// Package saltcache is a read-through Redis cache of user token salts.
// Token verification needs the salt on every authenticated request; the
// cache keeps that off the database. A nil *Cache passes every lookup
// straight to the loader.
package saltcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkit/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "authkit:token_salt:"

// Loader fetches a salt from the authoritative store.
type Loader func(ctx context.Context, userID string) (uuid.UUID, error)

type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger logging.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, logger: logger.With("module", "saltcache")}
}

// NewFromURL connects to redisURL ("redis://host:port/db"). An empty URL
// returns a nil cache, which disables caching.
func NewFromURL(ctx context.Context, redisURL string, ttl time.Duration, logger logging.Logger) (*Cache, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return New(rdb, ttl, logger), nil
}

func key(userID string) string {
	return keyPrefix + userID
}

// Lookup returns the cached salt of userID, loading and storing it on a
// miss. Redis failures are logged and fall through to load.
func (c *Cache) Lookup(ctx context.Context, userID string, load Loader) (uuid.UUID, error) {
	if c == nil {
		return load(ctx, userID)
	}

	cached, err := c.rdb.Get(ctx, key(userID)).Result()
	switch {
	case err == nil:
		salt, perr := uuid.Parse(cached)
		if perr == nil {
			return salt, nil
		}
		c.logger.Warn(ctx, "corrupt cached salt", "user_id", userID, "error", perr)
		if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
			c.logger.Warn(ctx, "salt cache del failed", "user_id", userID, "error", err)
		}
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn(ctx, "salt cache get failed", "user_id", userID, "error", err)
	}

	salt, err := load(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	// a fill never overwrites: Store may have put a newer salt there while
	// load was running
	if err := c.rdb.SetNX(ctx, key(userID), salt.String(), c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "salt cache set failed", "user_id", userID, "error", err)
	}

	return salt, nil
}

// Store puts the current salt of userID in the cache, replacing any
// value. Call it after rotating the salt.
func (c *Cache) Store(ctx context.Context, userID string, salt uuid.UUID) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Set(ctx, key(userID), salt.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("salt cache store: %w", err)
	}
	return nil
}

// Evict drops the cached salt of userID. Call it after deleting the user.
func (c *Cache) Evict(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("salt cache evict: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
