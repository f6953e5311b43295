// Package search provides web search with adaptive rate limiting and a
// TTL result cache. The provider never returns Go errors for search
// failures: callers always receive a structured SearchResponse whose
// Success flag and Error string report what happened.
package search

import (
	"context"
	"log/slog"

	"github.com/use-agent/justscrape/models"
)

// Provider is a web search backend.
type Provider interface {
	// Search performs a search and returns a structured response.
	// Failures are reported via Success=false, never as a panic or error.
	Search(ctx context.Context, query string, count int) *models.SearchResponse

	// Name returns the provider identifier (e.g. "duckduckgo").
	Name() string
}

// Client wraps a Provider with the process-wide rate limiter and result
// cache. Multiple orchestrator instances in one process must share a
// single Client, otherwise per-instance limiters would defeat throttling.
type Client struct {
	provider Provider
	limiter  *RateLimiter
	cache    *Cache
}

// NewClient composes a provider with a rate limiter and cache.
func NewClient(provider Provider, limiter *RateLimiter, cache *Cache) *Client {
	return &Client{
		provider: provider,
		limiter:  limiter,
		cache:    cache,
	}
}

// Name returns the underlying provider's identifier.
func (c *Client) Name() string { return c.provider.Name() }

// Search serves from cache when possible, otherwise waits out the rate
// limiter, queries the provider, feeds the limiter the outcome, and
// caches successful responses.
func (c *Client) Search(ctx context.Context, query string, count int) *models.SearchResponse {
	if cached := c.cache.Get(query, count); cached != nil {
		slog.Debug("search cache hit", "query", query, "count", count)
		return cached
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &models.SearchResponse{
			Query:   query,
			Results: []models.SearchResult{},
			Source:  c.provider.Name(),
			Success: false,
			Error:   "search cancelled: " + err.Error(),
		}
	}

	resp := c.provider.Search(ctx, query, count)
	if resp.Success {
		c.limiter.Success()
		c.cache.Set(query, count, resp)
	} else {
		c.limiter.Failure()
		slog.Warn("search failed, backing off",
			"query", query,
			"error", resp.Error,
			"next_delay", c.limiter.Delay(),
		)
	}
	return resp
}

// CacheStats exposes the result cache state for health reporting.
func (c *Client) CacheStats() models.CacheStats {
	return c.cache.Stats()
}
