package models

// SearchResult is a single ranked result from the search provider.
type SearchResult struct {
	// Position is the 1-based rank within the response.
	Position int `json:"position"`

	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`

	// Source tags the provider that produced the result.
	Source string `json:"source"`
}

// SearchResponse is a complete response from the search provider.
// Provider failures are reported through Success/Error rather than as
// Go errors, so callers always receive a structured response.
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`

	// SearchTimeMS is the elapsed provider time. Zero for cache hits.
	SearchTimeMS int64 `json:"search_time_ms"`

	Source  string `json:"source"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Cached is true only when the response was served from the result cache.
	Cached bool `json:"cached"`
}
