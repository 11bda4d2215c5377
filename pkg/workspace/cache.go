package workspace

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds object infos by reference path.
//
// Objects in the workspace are immutable, so cached infos never become stale.
// Failures in caches are not errors: Get misses and Set does nothing.
type Cache interface {
	Get(ctx context.Context, ref string) (ObjectInfo, bool)
	Set(ctx context.Context, info ObjectInfo)
}

// NopCache caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (ObjectInfo, bool) { return ObjectInfo{}, false }
func (NopCache) Set(context.Context, ObjectInfo)                {}

type redisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *log.Logger
}

const keyPrefix = "collections:wsobj:"

// NewRedisCache returns a Cache backed by redis.
//
// Entries expire after ttl. ttl <= 0 means entries never expire.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *log.Logger) Cache {
	return &redisCache{client: client, ttl: ttl, logger: logger}
}

func (c *redisCache) Get(ctx context.Context, ref string) (ObjectInfo, bool) {
	buf, err := c.client.Get(ctx, keyPrefix+ref).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("cache: failed to get %s: %s", ref, err)
		}
		return ObjectInfo{}, false
	}
	info := ObjectInfo{}
	if err := json.Unmarshal(buf, &info); err != nil {
		c.logger.Printf("cache: broken entry for %s: %s", ref, err)
		return ObjectInfo{}, false
	}
	return info, true
}

func (c *redisCache) Set(ctx context.Context, info ObjectInfo) {
	buf, err := json.Marshal(info)
	if err != nil {
		return
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, keyPrefix+info.Ref, buf, ttl).Err(); err != nil {
		c.logger.Printf("cache: failed to set %s: %s", info.Ref, err)
	}
}
