package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetcher   FetcherConfig
	Search    SearchConfig
	Registry  RegistryConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the rendering browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string
}

// FetcherConfig controls fetch method selection and execution.
type FetcherConfig struct {
	// DefaultTimeout bounds a single fetch when the request carries none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps any caller-supplied timeout.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout bounds rendered navigation alone.
	NavigationTimeout time.Duration // default: 15s

	// SettleDelay is the fixed pause after network quiescence that lets
	// deferred scripts finish before markup is read.
	SettleDelay time.Duration // default: 2s

	// MinContentLength is the static-fetch text length below which the
	// fetcher escalates to a rendered fetch.
	MinContentLength int // default: 200

	// RenderDomains adds registrable domains that always get a rendered
	// fetch, on top of the built-in set.
	RenderDomains []string

	// Stealth enables anti-bot-detection evasions in rendered fetches.
	Stealth bool // default: true

	// BlockTrackers aborts rendered sub-requests to known tracker/ad domains.
	BlockTrackers bool // default: true
}

// SearchConfig controls the search provider, its rate limiter and cache.
type SearchConfig struct {
	// Timeout is the per-search HTTP deadline.
	Timeout time.Duration // default: 10s

	// Region is the provider region code. Default: "wt-wt" (worldwide).
	Region string

	// MinDelay is the rate limiter floor between provider requests.
	MinDelay time.Duration // default: 1s

	// MaxDelay is the backoff ceiling.
	MaxDelay time.Duration // default: 30s

	// BackoffFactor multiplies the delay after each failure.
	BackoffFactor float64 // default: 2.0

	// CacheTTL is how long a cached search response stays fresh.
	CacheTTL time.Duration // default: 5m

	// CacheMaxEntries bounds the result cache.
	CacheMaxEntries int // default: 100
}

// RegistryConfig controls the sitemap URL registry.
type RegistryConfig struct {
	// Path is the sqlite database file. Default: ~/.justscrape/registry.db
	Path string

	// StaleAfter is the age beyond which a stored sitemap is refreshed.
	StaleAfter time.Duration // default: 168h (7 days)
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key API rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("JUSTSCRAPE_HOST", "0.0.0.0"),
			Port: envIntOr("JUSTSCRAPE_PORT", 8080),
			Mode: envOr("JUSTSCRAPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("JUSTSCRAPE_HEADLESS", true),
			NoSandbox:  envBoolOr("JUSTSCRAPE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("JUSTSCRAPE_BROWSER_BIN"),
			Proxy:      os.Getenv("JUSTSCRAPE_PROXY"),
		},
		Fetcher: FetcherConfig{
			DefaultTimeout:    envDurationOr("JUSTSCRAPE_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("JUSTSCRAPE_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("JUSTSCRAPE_NAV_TIMEOUT", 15*time.Second),
			SettleDelay:       envDurationOr("JUSTSCRAPE_SETTLE_DELAY", 2*time.Second),
			MinContentLength:  envIntOr("JUSTSCRAPE_MIN_CONTENT", 200),
			RenderDomains:     envSliceOr("JUSTSCRAPE_RENDER_DOMAINS", nil),
			Stealth:           envBoolOr("JUSTSCRAPE_STEALTH", true),
			BlockTrackers:     envBoolOr("JUSTSCRAPE_BLOCK_TRACKERS", true),
		},
		Search: SearchConfig{
			Timeout:         envDurationOr("JUSTSCRAPE_SEARCH_TIMEOUT", 10*time.Second),
			Region:          envOr("JUSTSCRAPE_SEARCH_REGION", "wt-wt"),
			MinDelay:        envDurationOr("JUSTSCRAPE_SEARCH_MIN_DELAY", time.Second),
			MaxDelay:        envDurationOr("JUSTSCRAPE_SEARCH_MAX_DELAY", 30*time.Second),
			BackoffFactor:   envFloatOr("JUSTSCRAPE_SEARCH_BACKOFF", 2.0),
			CacheTTL:        envDurationOr("JUSTSCRAPE_SEARCH_CACHE_TTL", 5*time.Minute),
			CacheMaxEntries: envIntOr("JUSTSCRAPE_SEARCH_CACHE_MAX", 100),
		},
		Registry: RegistryConfig{
			Path:       envOr("JUSTSCRAPE_REGISTRY_PATH", defaultRegistryPath()),
			StaleAfter: envDurationOr("JUSTSCRAPE_REGISTRY_STALE_AFTER", 7*24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("JUSTSCRAPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("JUSTSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("JUSTSCRAPE_RATE_RPS", 5.0),
			Burst:             envIntOr("JUSTSCRAPE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("JUSTSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("JUSTSCRAPE_LOG_FORMAT", "json"),
		},
	}
}

func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "justscrape-registry.db"
	}
	return home + "/.justscrape/registry.db"
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
