package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/model"
)

// SourceCache keeps source configurations in redis so that building a
// driver does not need a database round trip. A nil cache is a no-op.
type SourceCache struct {
	redis RedisClient
	ttl   time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

// NewSourceCache returns a cache storing entries for ttl. A nil client or a
// zero ttl disables caching.
func NewSourceCache(client RedisClient, ttl time.Duration) *SourceCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &SourceCache{redis: client, ttl: ttl, generations: make(map[string]uint64)}
}

func sourceKey(uuid string) string {
	return fmt.Sprintf("source:%s", uuid)
}

func (c *SourceCache) Get(ctx context.Context, uuid string) (*model.Source, bool) {
	if c == nil {
		return nil, false
	}
	cached, err := c.redis.Get(ctx, sourceKey(uuid)).Result()
	if err != nil {
		return nil, false
	}
	source := &model.Source{}
	if err := json.Unmarshal([]byte(cached), source); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("source_uuid", uuid).Msg("Ignoring malformed cached source")
		return nil, false
	}
	return source, true
}

// Generation returns the number of invalidations of uuid. It is read
// before loading a source and handed to Set.
func (c *SourceCache) Generation(uuid string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[uuid]
}

// Set stores source unless it was invalidated since generation was read.
func (c *SourceCache) Set(ctx context.Context, source *model.Source, generation uint64) {
	if c == nil || c.Generation(source.UUID) != generation {
		return
	}
	data, err := json.Marshal(source)
	if err != nil {
		return
	}
	if err := c.redis.SetEx(ctx, sourceKey(source.UUID), data, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("source_uuid", source.UUID).Msg("Failed to cache source")
	}
}

func (c *SourceCache) Invalidate(ctx context.Context, uuids ...string) {
	if c == nil || len(uuids) == 0 {
		return
	}
	keys := make([]string, 0, len(uuids))
	c.mu.Lock()
	for _, uuid := range uuids {
		c.generations[uuid]++
		keys = append(keys, sourceKey(uuid))
	}
	c.mu.Unlock()
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Strs("source_uuids", uuids).Msg("Failed to invalidate cached sources")
	}
}
