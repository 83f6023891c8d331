package discovery

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"leadscout/models"
)

// Cache holds search results keyed by query so repeated runs for the same
// product don't burn provider quota.
type Cache interface {
	Get(ctx context.Context, query string) ([]models.CandidateResult, bool)
	Set(ctx context.Context, query string, results []models.CandidateResult)
}

// NopCache misses on every lookup.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]models.CandidateResult, bool) { return nil, false }
func (NopCache) Set(context.Context, string, []models.CandidateResult)       {}

const cacheKeyPrefix = "search:q:"

// RedisCache stores results as JSON with a TTL. Lookups and writes are
// best-effort: any redis error reads as a miss.
type RedisCache struct {
	Rdb *redis.Client
	TTL time.Duration
	Log *log.Logger
}

func (c *RedisCache) Get(ctx context.Context, query string) ([]models.CandidateResult, bool) {
	b, err := c.Rdb.Get(ctx, cacheKeyPrefix+query).Bytes()
	if err != nil {
		if err != redis.Nil && c.Log != nil {
			c.Log.Printf("cache get failed for %q: %v", query, err)
		}
		return nil, false
	}
	var results []models.CandidateResult
	if err := json.Unmarshal(b, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *RedisCache) Set(ctx context.Context, query string, results []models.CandidateResult) {
	b, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.Rdb.Set(ctx, cacheKeyPrefix+query, b, c.TTL).Err(); err != nil && c.Log != nil {
		c.Log.Printf("cache set failed for %q: %v", query, err)
	}
}
