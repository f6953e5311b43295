package extract

import (
	"net/url"
	"strings"

	"github.com/use-agent/justscrape/models"
)

// junkPatterns marks ad, tracker and social-widget URLs that are never
// worth following. Matched as lowercase substrings.
var junkPatterns = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"facebook.com/plugins",
	"facebook.com/sharer",
	"twitter.com/widgets",
	"twitter.com/intent",
	"linkedin.com/share",
	"pinterest.com/pin",
	"/ads/",
	"/ad/",
	"/banner/",
	"/tracker/",
	"/track/",
	"analytics",
	"pixel",
	"/feed/",
	"/rss/",
}

// IsJunkURL reports whether a URL matches a known ad/tracker/widget pattern.
func IsJunkURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range junkPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// URLs extracts followable page URLs from markup: hyperlinks resolved to
// absolute form, junk filtered out, fragments stripped. When sameHostOnly
// is set, links leaving the source host are dropped too.
func URLs(markup, sourceURL string, sameHostOnly bool) []string {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return []string{}
	}

	urls := []string{}
	seen := make(map[string]struct{})
	for _, link := range Links(markup, sourceURL) {
		if IsJunkURL(link.Href) {
			continue
		}

		resolved, err := url.Parse(link.Href)
		if err != nil {
			continue
		}
		if sameHostOnly && !strings.EqualFold(resolved.Host, base.Host) {
			continue
		}

		resolved.Fragment = ""
		clean := resolved.String()
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		urls = append(urls, clean)
	}

	return urls
}

// FilterJunkLinks drops junk links from an extracted link list and reports
// how many were removed.
func FilterJunkLinks(links []models.Link) ([]models.Link, int) {
	kept := make([]models.Link, 0, len(links))
	junk := 0
	for _, l := range links {
		if IsJunkURL(l.Href) {
			junk++
			continue
		}
		kept = append(kept, l)
	}
	return kept, junk
}
