// Package cache keeps recently fetched battle logs in Redis so repeated runs
// within the TTL do not hit the API again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pable/go-cr-meta/internal/model"
)

// DefaultTTL is how long a cached battle log stays valid.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "crmeta:battlelog:"

// Source fetches a player's battle log.
type Source interface {
	BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error)
}

// NewRedisClient connects to addr, which may be a redis:// URL or host:port,
// and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// BattleLogCache is a read-through cache in front of a Source. Redis
// failures are logged and fall back to the Source.
type BattleLogCache struct {
	next Source
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger

	Hits   int
	Misses int
}

// New wraps next with a Redis cache. ttl <= 0 uses DefaultTTL; log may be nil.
func New(next Source, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *BattleLogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BattleLogCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

// Key returns the Redis key for a tag.
func Key(tag string) string {
	return keyPrefix + tag
}

// BattleLog returns the cached log for tag, fetching and storing it on a miss.
func (c *BattleLogCache) BattleLog(ctx context.Context, tag string) ([]model.RawBattle, error) {
	key := Key(tag)

	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var battles []model.RawBattle
		if err := json.Unmarshal(val, &battles); err == nil {
			c.Hits++
			return battles, nil
		}
		c.log.Warn("discarding unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	c.Misses++
	battles, err := c.next.BattleLog(ctx, tag)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(battles)
	if err != nil {
		return battles, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return battles, nil
}
