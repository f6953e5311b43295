// Package registry stores sitemaps and their URLs in sqlite, giving URL
// discovery for known domains without spending search quota.
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/justscrape/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS sitemaps (
	domain        TEXT PRIMARY KEY,
	sitemap_url   TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	last_fetched  TIMESTAMP NOT NULL,
	url_count     INTEGER DEFAULT 0,
	status        TEXT DEFAULT 'pending',
	error_message TEXT
);

CREATE TABLE IF NOT EXISTS sitemap_urls (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	url              TEXT NOT NULL UNIQUE,
	domain           TEXT NOT NULL,
	last_modified    TEXT,
	priority         REAL,
	change_frequency TEXT,
	scraped          BOOLEAN DEFAULT 0,
	scraped_at       TIMESTAMP,
	FOREIGN KEY (domain) REFERENCES sitemaps(domain) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sitemap_urls_domain  ON sitemap_urls(domain);
CREATE INDEX IF NOT EXISTS idx_sitemap_urls_scraped ON sitemap_urls(scraped, domain);
`

// Statuses recorded on the sitemaps table.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Info is the stored metadata about one domain's sitemap.
type Info struct {
	Domain      string    `json:"domain"`
	SitemapURL  string    `json:"sitemap_url"`
	ContentHash string    `json:"content_hash"`
	LastFetched time.Time `json:"last_fetched"`
	URLCount    int       `json:"url_count"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Stats summarizes registry contents.
type Stats struct {
	TotalSitemaps int    `json:"total_sitemaps"`
	TotalURLs     int    `json:"total_urls"`
	ScrapedURLs   int    `json:"scraped_urls"`
	UnscrapedURLs int    `json:"unscraped_urls"`
	Path          string `json:"database_path"`
}

// Registry is the sqlite-backed sitemap store. Safe for concurrent use;
// database/sql serializes access to the underlying connection pool.
type Registry struct {
	db         *sql.DB
	path       string
	staleAfter time.Duration
	fetch      fetchFunc
}

// Open creates or opens the registry database at path, creating parent
// directories as needed.
func Open(path string, staleAfter time.Duration) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, models.NewRetrieveError(models.ErrCodeRegistry,
				"failed to create registry directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.NewRetrieveError(models.ErrCodeRegistry,
			"failed to open registry database", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, models.NewRetrieveError(models.ErrCodeRegistry,
			"failed to enable foreign keys", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, models.NewRetrieveError(models.ErrCodeRegistry,
			"failed to apply registry schema", err)
	}

	if staleAfter <= 0 {
		staleAfter = 7 * 24 * time.Hour
	}

	return &Registry{
		db:         db,
		path:       path,
		staleAfter: staleAfter,
		fetch:      fetchSitemap,
	}, nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// normalizeDomain reduces a URL or bare domain to its lowercase host
// without a www prefix, so lookups for the same site always collide.
func normalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimPrefix(raw, "https://"))
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// candidateSitemapURLs lists the common sitemap locations to probe when
// no explicit URL is given.
func candidateSitemapURLs(domain string) []string {
	base := "https://" + domain
	return []string{
		base + "/sitemap.xml",
		base + "/sitemap_index.xml",
		base + "/sitemap-index.xml",
		base + "/sitemap1.xml",
		base + "/post-sitemap.xml",
		base + "/page-sitemap.xml",
		"https://www." + domain + "/sitemap.xml",
	}
}

// AddDomain fetches the domain's sitemap and stores its URLs. An empty
// sitemapURL triggers auto-discovery over the common locations. A domain
// whose sitemap cannot be found is recorded as failed.
func (r *Registry) AddDomain(ctx context.Context, domain, sitemapURL string) error {
	domain = normalizeDomain(domain)
	if domain == "" {
		return models.NewRetrieveError(models.ErrCodeInvalidInput, "domain is required", nil)
	}

	candidates := []string{sitemapURL}
	if sitemapURL == "" {
		candidates = candidateSitemapURLs(domain)
	}

	for _, candidate := range candidates {
		content, err := r.fetch(ctx, candidate)
		if err != nil {
			slog.Debug("sitemap candidate failed", "url", candidate, "error", err)
			continue
		}
		return r.storeSitemap(ctx, domain, candidate, content)
	}

	if err := r.markFailed(ctx, domain, "no valid sitemap found"); err != nil {
		return err
	}
	return models.NewRetrieveError(models.ErrCodeRegistry,
		fmt.Sprintf("no valid sitemap found for %s", domain), nil)
}

// storeSitemap parses fetched sitemap content, following one level of
// sitemap-index indirection, and writes everything in one transaction.
func (r *Registry) storeSitemap(ctx context.Context, domain, sitemapURL string, content []byte) error {
	sum := sha256.Sum256(content)
	contentHash := hex.EncodeToString(sum[:])

	entries, children, err := parseSitemap(content)
	if err != nil {
		if markErr := r.markFailed(ctx, domain, "sitemap parse failed"); markErr != nil {
			return markErr
		}
		return models.NewRetrieveError(models.ErrCodeRegistry, "sitemap parse failed", err)
	}

	if len(children) > 0 {
		slog.Info("sitemap index found", "domain", domain, "children", len(children))
		entries = nil
		for _, child := range children {
			childContent, fetchErr := r.fetch(ctx, child)
			if fetchErr != nil {
				slog.Warn("child sitemap fetch failed", "url", child, "error", fetchErr)
				continue
			}
			childEntries, _, parseErr := parseSitemap(childContent)
			if parseErr != nil {
				slog.Warn("child sitemap parse failed", "url", child, "error", parseErr)
				continue
			}
			entries = append(entries, childEntries...)
		}
	}

	if len(entries) == 0 {
		if err := r.markFailed(ctx, domain, "no URLs found in sitemap"); err != nil {
			return err
		}
		return models.NewRetrieveError(models.ErrCodeRegistry,
			fmt.Sprintf("no URLs found in sitemap for %s", domain), nil)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sitemaps
			(domain, sitemap_url, content_hash, last_fetched, url_count, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		domain, sitemapURL, contentHash, time.Now().UTC(), len(entries), statusSuccess)
	if err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to store sitemap", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sitemap_urls
			(url, domain, last_modified, priority, change_frequency)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to prepare URL insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Loc, domain,
			nullString(e.LastMod), e.Priority, nullString(e.ChangeFreq)); err != nil {
			return models.NewRetrieveError(models.ErrCodeRegistry, "failed to store URL", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to commit sitemap", err)
	}

	slog.Info("sitemap stored", "domain", domain, "urls", len(entries))
	return nil
}

func (r *Registry) markFailed(ctx context.Context, domain, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sitemaps
			(domain, sitemap_url, content_hash, last_fetched, url_count, status, error_message)
		VALUES (?, '', '', ?, 0, ?, ?)`,
		domain, time.Now().UTC(), statusFailed, reason)
	if err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to record failure", err)
	}
	return nil
}

// HasSitemap reports whether a successfully fetched sitemap is stored for
// the domain.
func (r *Registry) HasSitemap(ctx context.Context, domain string) (bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM sitemaps WHERE domain = ?`,
		normalizeDomain(domain)).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, models.NewRetrieveError(models.ErrCodeRegistry, "sitemap lookup failed", err)
	}
	return status == statusSuccess, nil
}

// IsStale reports whether the stored sitemap is older than the staleness
// window. Unknown domains are stale by definition.
func (r *Registry) IsStale(ctx context.Context, domain string) (bool, error) {
	var lastFetched time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_fetched FROM sitemaps WHERE domain = ?`,
		normalizeDomain(domain)).Scan(&lastFetched)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, models.NewRetrieveError(models.ErrCodeRegistry, "staleness lookup failed", err)
	}
	return time.Since(lastFetched) > r.staleAfter, nil
}

// Refresh re-fetches a domain's sitemap, reusing the stored sitemap URL
// when one is known.
func (r *Registry) Refresh(ctx context.Context, domain string) error {
	info, err := r.Info(ctx, domain)
	if err != nil {
		return err
	}
	sitemapURL := ""
	if info != nil {
		sitemapURL = info.SitemapURL
	}
	return r.AddDomain(ctx, domain, sitemapURL)
}

// URLs returns stored URLs for a domain ordered by sitemap priority (high
// first) then URL. limit <= 0 returns everything.
func (r *Registry) URLs(ctx context.Context, domain string, limit, offset int, unscrapedOnly bool) ([]string, error) {
	query := `SELECT url FROM sitemap_urls WHERE domain = ?`
	args := []any{normalizeDomain(domain)}

	if unscrapedOnly {
		query += ` AND scraped = 0`
	}
	query += ` ORDER BY priority DESC, url ASC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewRetrieveError(models.ErrCodeRegistry, "URL query failed", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, models.NewRetrieveError(models.ErrCodeRegistry, "URL scan failed", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// MarkScraped records that a URL has been retrieved.
func (r *Registry) MarkScraped(ctx context.Context, pageURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sitemap_urls SET scraped = 1, scraped_at = ? WHERE url = ?`,
		time.Now().UTC(), pageURL)
	if err != nil {
		return models.NewRetrieveError(models.ErrCodeRegistry, "failed to mark URL scraped", err)
	}
	return nil
}

// Info returns stored metadata for a domain, or nil when unknown.
func (r *Registry) Info(ctx context.Context, domain string) (*Info, error) {
	var (
		info   Info
		errMsg sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT domain, sitemap_url, content_hash, last_fetched, url_count, status, error_message
		FROM sitemaps WHERE domain = ?`,
		normalizeDomain(domain)).Scan(
		&info.Domain, &info.SitemapURL, &info.ContentHash,
		&info.LastFetched, &info.URLCount, &info.Status, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewRetrieveError(models.ErrCodeRegistry, "sitemap info lookup failed", err)
	}
	info.Error = errMsg.String
	return &info, nil
}

// Domains lists all registered domains.
func (r *Registry) Domains(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT domain FROM sitemaps ORDER BY domain`)
	if err != nil {
		return nil, models.NewRetrieveError(models.ErrCodeRegistry, "domain listing failed", err)
	}
	defer rows.Close()

	domains := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, models.NewRetrieveError(models.ErrCodeRegistry, "domain scan failed", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Stats summarizes the registry.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: r.path}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sitemaps WHERE status = ?),
			(SELECT COUNT(*) FROM sitemap_urls),
			(SELECT COUNT(*) FROM sitemap_urls WHERE scraped = 1)`,
		statusSuccess)
	if err := row.Scan(&stats.TotalSitemaps, &stats.TotalURLs, &stats.ScrapedURLs); err != nil {
		return stats, models.NewRetrieveError(models.ErrCodeRegistry, "stats query failed", err)
	}
	stats.UnscrapedURLs = stats.TotalURLs - stats.ScrapedURLs
	return stats, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
