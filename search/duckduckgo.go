package search

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/justscrape/models"
)

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// userAgents is rotated per request to avoid trivially fingerprintable
// traffic against the HTML endpoint.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// uddgRedirect extracts the real target URL out of DuckDuckGo's
// /l/?uddg=<encoded> redirect links.
var uddgRedirect = regexp.MustCompile(`uddg=([^&]+)`)

// DuckDuckGo searches the DuckDuckGo HTML endpoint. No API key required.
type DuckDuckGo struct {
	client *http.Client
	region string
}

// NewDuckDuckGo creates a provider with the given request timeout and
// region code ("wt-wt" is worldwide).
func NewDuckDuckGo(timeout time.Duration, region string) *DuckDuckGo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if region == "" {
		region = "wt-wt"
	}
	return &DuckDuckGo{
		client: &http.Client{Timeout: timeout},
		region: region,
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search posts the query to the HTML endpoint and scrapes the result list.
func (d *DuckDuckGo) Search(ctx context.Context, query string, count int) *models.SearchResponse {
	start := time.Now()

	form := url.Values{}
	form.Set("q", query)
	form.Set("kl", d.region)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return d.failure(query, start, "build request: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return d.failure(query, start, "request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.failure(query, start, "unexpected status "+resp.Status)
	}

	results, err := parseResults(resp.Body, count)
	if err != nil {
		return d.failure(query, start, "parse results: "+err.Error())
	}

	return &models.SearchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		SearchTimeMS: time.Since(start).Milliseconds(),
		Source:       d.Name(),
		Success:      true,
	}
}

func (d *DuckDuckGo) failure(query string, start time.Time, msg string) *models.SearchResponse {
	return &models.SearchResponse{
		Query:        query,
		Results:      []models.SearchResult{},
		SearchTimeMS: time.Since(start).Milliseconds(),
		Source:       d.Name(),
		Success:      false,
		Error:        msg,
	}
}

// parseResults scrapes the DuckDuckGo HTML result list. Individual broken
// result blocks are skipped; positions are assigned 1-based over the
// results actually kept.
func parseResults(body io.Reader, limit int) ([]models.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, limit)
	doc.Find(".result__body").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		titleEl := s.Find(".result__a").First()
		if titleEl.Length() == 0 {
			return true
		}

		title := strings.TrimSpace(titleEl.Text())
		href, _ := titleEl.Attr("href")
		target := resolveRedirect(href)
		if target == "" || !strings.HasPrefix(target, "http") {
			return true
		}

		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())

		results = append(results, models.SearchResult{
			Position: len(results) + 1,
			Title:    title,
			URL:      target,
			Snippet:  snippet,
			Source:   "duckduckgo",
		})
		return true
	})

	return results, nil
}

// resolveRedirect unwraps the uddg= redirect parameter when present.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	m := uddgRedirect.FindStringSubmatch(href)
	if len(m) != 2 {
		return href
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return href
	}
	return decoded
}
