package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/justscrape/models"
)

// Links parses the markup and returns deduplicated hyperlinks with
// relative hrefs resolved against the source URL. Non-http(s) schemes
// (javascript:, mailto:, tel:) are dropped.
func Links(markup, sourceURL string) []models.Link {
	links := []models.Link{}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return links
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return links
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		links = append(links, models.Link{
			Href: abs,
			Text: strings.TrimSpace(s.Text()),
		})
	})

	return links
}

// Images parses the markup and returns image elements with absolute
// source URLs. Data URIs are skipped.
func Images(markup, sourceURL string) []models.Image {
	images := []models.Image{}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return images
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return images
	}

	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists || src == "" {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil || resolved.Scheme == "data" {
			return
		}

		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		alt, _ := s.Attr("alt")
		images = append(images, models.Image{
			Src: abs,
			Alt: strings.TrimSpace(alt),
		})
	})

	return images
}
