package registry

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// fetchFunc retrieves raw sitemap content. Injectable for tests.
type fetchFunc func(ctx context.Context, sitemapURL string) ([]byte, error)

const sitemapUA = "Mozilla/5.0 (compatible; justscrape-sitemap/1.0)"

// maxSitemapBytes caps sitemap downloads. Large sites ship multi-megabyte
// child sitemaps; 50 MB is well past anything legitimate.
const maxSitemapBytes = 50 * 1024 * 1024

var sitemapClient = &http.Client{Timeout: 30 * time.Second}

// fetchSitemap downloads a sitemap, transparently gunzipping .gz files.
func fetchSitemap(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", sitemapUA)

	resp, err := sitemapClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap fetch: HTTP %d for %s", resp.StatusCode, sitemapURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(sitemapURL, ".gz") {
		gz, err := gzip.NewReader(strings.NewReader(string(body)))
		if err != nil {
			return nil, fmt.Errorf("sitemap gunzip: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(io.LimitReader(gz, maxSitemapBytes))
	}

	return body, nil
}

// sitemapEntry is one <url> element from a sitemap.
type sitemapEntry struct {
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod"`
	Priority   *float64 `xml:"priority"`
	ChangeFreq string   `xml:"changefreq"`
}

type urlSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// parseSitemap decodes sitemap XML. For a regular sitemap it returns the
// URL entries; for a sitemap index it returns the child sitemap URLs.
func parseSitemap(content []byte) ([]sitemapEntry, []string, error) {
	root, err := rootElement(content)
	if err != nil {
		return nil, nil, err
	}

	switch root {
	case "sitemapindex":
		var index sitemapIndex
		if err := xml.Unmarshal(content, &index); err != nil {
			return nil, nil, fmt.Errorf("sitemap index decode: %w", err)
		}
		children := make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return nil, children, nil

	case "urlset":
		var set urlSet
		if err := xml.Unmarshal(content, &set); err != nil {
			return nil, nil, fmt.Errorf("sitemap decode: %w", err)
		}
		entries := make([]sitemapEntry, 0, len(set.URLs))
		for _, e := range set.URLs {
			e.Loc = strings.TrimSpace(e.Loc)
			if e.Loc == "" {
				continue
			}
			e.LastMod = strings.TrimSpace(e.LastMod)
			e.ChangeFreq = strings.TrimSpace(e.ChangeFreq)
			entries = append(entries, e)
		}
		return entries, nil, nil

	default:
		return nil, nil, fmt.Errorf("unrecognized sitemap root element %q", root)
	}
}

// rootElement returns the local name of the document's root element.
func rootElement(content []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(content)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("sitemap XML: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
