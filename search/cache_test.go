package search

import (
	"testing"
	"time"

	"github.com/use-agent/justscrape/models"
)

func okResponse(query string, n int) *models.SearchResponse {
	results := make([]models.SearchResult, n)
	for i := range results {
		results[i] = models.SearchResult{
			Position: i + 1,
			Title:    "result",
			URL:      "https://example.com",
			Source:   "duckduckgo",
		}
	}
	return &models.SearchResponse{
		Query:        query,
		Results:      results,
		TotalResults: n,
		SearchTimeMS: 123,
		Source:       "duckduckgo",
		Success:      true,
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := NewCache(time.Minute, 10)
	c.Set("go testing", 5, okResponse("go testing", 5))

	hit := c.Get("go testing", 5)
	if hit == nil {
		t.Fatal("expected cache hit")
	}
	if !hit.Cached {
		t.Error("hit must be flagged cached=true")
	}
	if hit.SearchTimeMS != 0 {
		t.Errorf("hit search_time_ms = %d, want 0", hit.SearchTimeMS)
	}
	if hit.TotalResults != 5 || len(hit.Results) != 5 {
		t.Errorf("hit carries %d results, want 5", len(hit.Results))
	}

	// The stored response must not have been mutated by the hit copy.
	second := c.Get("go testing", 5)
	if second == nil || second.SearchTimeMS != 0 || !second.Cached {
		t.Error("second hit lost the cached flags")
	}
}

func TestCache_KeyNormalization(t *testing.T) {
	c := NewCache(time.Minute, 10)
	c.Set("  Go Testing  ", 5, okResponse("Go Testing", 5))

	if c.Get("go testing", 5) == nil {
		t.Error("case/whitespace variants of the same query must collide")
	}
	if c.Get("go testing", 6) != nil {
		t.Error("a different result count must be a different key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache(30*time.Millisecond, 10)
	c.Set("stale", 3, okResponse("stale", 3))

	if c.Get("stale", 3) == nil {
		t.Fatal("expected a hit before the TTL elapses")
	}

	time.Sleep(50 * time.Millisecond)

	if c.Get("stale", 3) != nil {
		t.Fatal("expected a miss after the TTL elapsed")
	}
	if size := c.Stats().Size; size != 0 {
		t.Errorf("stale entry still counted in stats: size = %d", size)
	}
}

func TestCache_FailedResponsesNotStored(t *testing.T) {
	c := NewCache(time.Minute, 10)
	c.Set("broken", 5, &models.SearchResponse{
		Query:   "broken",
		Success: false,
		Error:   "provider exploded",
	})

	if c.Get("broken", 5) != nil {
		t.Error("failed responses must never be cached")
	}
}

func TestCache_CapacityEvictsOldestInsert(t *testing.T) {
	c := NewCache(time.Minute, 3)

	queries := []string{"first", "second", "third"}
	for _, q := range queries {
		c.Set(q, 1, okResponse(q, 1))
		time.Sleep(2 * time.Millisecond) // distinct insertion times
	}

	// Re-reading an old entry must NOT protect it: eviction is by
	// insertion time, not by use.
	if c.Get("first", 1) == nil {
		t.Fatal("setup: expected first to be present")
	}

	c.Set("fourth", 1, okResponse("fourth", 1))

	if c.Get("first", 1) != nil {
		t.Error("oldest-inserted entry should have been evicted")
	}
	for _, q := range []string{"second", "third", "fourth"} {
		if c.Get(q, 1) == nil {
			t.Errorf("entry %q should have survived eviction", q)
		}
	}
	if size := c.Stats().Size; size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}
