package preference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"PeerMatch/internal/matchmaker"
	"PeerMatch/internal/metrics"
	"PeerMatch/internal/utils"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "pref:"

func cacheKey(userID string) string {
	return cachePrefix + userID
}

// CachedRepository is a read-through Redis cache in front of another
// Repository. Writes go to the inner repository first and then drop the
// cached copy. Cache failures are logged and never fail the call.
type CachedRepository struct {
	next Repository
	rdb  *redis.Client
	ttl  time.Duration

	Metrics *metrics.Metrics
}

func NewCachedRepository(next Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedRepository) Save(ctx context.Context, p matchmaker.Preference) error {
	if err := c.next.Save(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, p.UserID)
	return nil
}

func (c *CachedRepository) FindByID(ctx context.Context, userID string) (matchmaker.Preference, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(userID)).Bytes()
	switch {
	case err == nil:
		var p matchmaker.Preference
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			c.Metrics.CacheHit()
			return p, nil
		}
		utils.Log.Warn("dropping undecodable cached preference", "user", userID)
	case !errors.Is(err, redis.Nil):
		utils.Log.Warn("preference cache read failed", "user", userID, "err", err)
	}
	c.Metrics.CacheMiss()

	p, err := c.next.FindByID(ctx, userID)
	if err != nil {
		return matchmaker.Preference{}, err
	}
	if payload, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, cacheKey(userID), payload, c.ttl).Err(); err != nil {
			utils.Log.Warn("preference cache write failed", "user", userID, "err", err)
		}
	}
	return p, nil
}

func (c *CachedRepository) DeleteByID(ctx context.Context, userID string) error {
	err := c.next.DeleteByID(ctx, userID)
	c.evict(ctx, userID)
	return err
}

func (c *CachedRepository) ExistsByID(ctx context.Context, userID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cacheKey(userID)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	return c.next.ExistsByID(ctx, userID)
}

func (c *CachedRepository) evict(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, cacheKey(userID)).Err(); err != nil {
		utils.Log.Warn("preference cache evict failed", "user", userID, "err", err)
	}
}
