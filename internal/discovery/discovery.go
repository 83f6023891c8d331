// Package discovery turns search queries into candidate leads by fanning out
// over a web search provider, with optional result caching.
package discovery

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"leadscout/models"
	"leadscout/tools/web_search"
)

const defaultMaxInFlight = 3

// Client runs candidate discovery over a web search provider.
type Client struct {
	Searcher    web_search.WebSearcher
	Cache       Cache
	PerQuery    int // results requested per query; provider default when <= 0
	MaxInFlight int
	Log         *log.Logger
}

// Search returns candidates for one query, consulting the cache first.
func (c *Client) Search(ctx context.Context, query string) ([]models.CandidateResult, error) {
	if c.Cache != nil {
		if hit, ok := c.Cache.Get(ctx, query); ok {
			c.logf("cache hit for %q", query)
			return hit, nil
		}
	}
	results, err := c.Searcher.Search(ctx, query, c.PerQuery)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.CandidateResult{}
	}
	if c.Cache != nil {
		c.Cache.Set(ctx, query, results)
	}
	return results, nil
}

// SearchMany runs Search for every unique query with bounded concurrency.
// The returned map has exactly one entry per unique query; a failed query
// maps to an empty list rather than aborting the batch.
func (c *Client) SearchMany(ctx context.Context, queries []string) map[string][]models.CandidateResult {
	seen := make(map[string]struct{}, len(queries))
	unique := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		unique = append(unique, q)
	}

	out := make(map[string][]models.CandidateResult, len(unique))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limit := c.MaxInFlight
	if limit <= 0 {
		limit = defaultMaxInFlight
	}
	g.SetLimit(limit)
	for _, q := range unique {
		g.Go(func() error {
			results, err := c.Search(gctx, q)
			if err != nil {
				c.logf("search failed for %q: %v", q, err)
				results = []models.CandidateResult{}
			}
			mu.Lock()
			out[q] = results
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.Log != nil {
		c.Log.Printf(format, args...)
	}
}
