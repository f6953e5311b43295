package models

// Signals carries the raw transport facts behind a classification so
// callers can always distinguish "no content" from "content but untrustworthy".
type Signals struct {
	ContentLength   int         `json:"content_length"`
	Method          FetchMethod `json:"method"`
	HadMarkup       bool        `json:"had_markup"`
	EncodingFailure bool        `json:"encoding_failure"`

	// TokensEstimate is a rough token count of the content, for LLM callers
	// budgeting their context window.
	TokensEstimate int `json:"tokens_estimate"`
}

// RetrieveResponse is the result of a single retrieve-and-classify call.
type RetrieveResponse struct {
	URL      string            `json:"url"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Links    []Link            `json:"links,omitempty"`
	Images   []Image           `json:"images,omitempty"`

	Signals        Signals `json:"signals"`
	Classification Verdict `json:"classification"`

	// Error is populated only for hard failures (invalid input,
	// rendering engine could not start).
	Error *ErrorDetail `json:"error,omitempty"`
}

// SourceEntry is one retrieved search result inside a research response.
// Position always carries the original search rank so callers can
// reconstruct rank order regardless of completion order.
type SourceEntry struct {
	Position      int      `json:"position"`
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
	Status        Status   `json:"status"`
	Method        FetchMethod `json:"method,omitempty"`
	ContentLength int      `json:"content_length"`

	// Content is set only for usable sources, truncated to the caller's limit.
	Content string `json:"content,omitempty"`

	// Reason lists the classifier evidence (or the error string) for failures.
	Reason []string `json:"reason,omitempty"`

	// DuplicateOf is the Position of an earlier usable source whose content
	// is nearly identical to this one, or zero.
	DuplicateOf int `json:"duplicate_of,omitempty"`
}

// ResearchMetrics aggregates the outcome distribution of a research batch.
type ResearchMetrics struct {
	Total        int     `json:"total"`
	UsableCount  int     `json:"usable_count"`
	UsableRate   float64 `json:"usable_rate"`
	BlockedCount int     `json:"blocked_count"`
	ThinCount    int     `json:"thin_count"`
}

// ResearchResponse is the result of search-then-retrieve-many.
type ResearchResponse struct {
	Query    string          `json:"query"`
	Sources  []SourceEntry   `json:"sources"`
	Failures []SourceEntry   `json:"failures"`
	Metrics  ResearchMetrics `json:"metrics"`

	// SearchError is set when the upstream search itself failed; the
	// sources and failures lists are empty in that case.
	SearchError string `json:"search_error,omitempty"`
}

// URLsResponse is the result of one-level link discovery on a page.
type URLsResponse struct {
	SourceURL string   `json:"source_url"`
	URLs      []string `json:"urls"`
	Count     int      `json:"count"`

	// JunkFiltered counts links dropped by the junk-pattern filter.
	JunkFiltered int `json:"junk_filtered"`
}

// PoolStats reports the state of the rendering resource pool.
type PoolStats struct {
	Initialized bool    `json:"initialized"`
	IdleSeconds float64 `json:"idle_seconds"`
}

// CacheStats reports the state of the search result cache.
type CacheStats struct {
	Size       int   `json:"size"`
	MaxEntries int   `json:"max_entries"`
	TTLSeconds int64 `json:"ttl_seconds"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string     `json:"status"`
	Uptime     string     `json:"uptime"`
	Pool       PoolStats  `json:"pool"`
	Cache      CacheStats `json:"cache"`
	Version    string     `json:"version"`
}
