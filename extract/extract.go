// Package extract turns raw page markup into the facets a retrieval
// request asks for: clean text, metadata, links and images.
package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// minArticleLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this we assume the
// algorithm failed to locate the main content and fall back to raw markup.
const minArticleLength = 50

// Document is the readable core of a page: title plus clean text.
type Document struct {
	// Title is the page title as determined by readability, with a
	// <title>-tag fallback.
	Title string

	// Text is the main content converted to Markdown. Plain text when
	// Markdown conversion fails.
	Text string

	// HTML is the readability-cleaned content markup.
	HTML string
}

// Parser extracts documents from markup. The Markdown converter inside is
// created once and is goroutine-safe, so a single Parser serves all fetches.
type Parser struct {
	md *mdConverter
}

// NewParser creates a Parser with a pre-configured Markdown converter.
func NewParser() *Parser {
	return &Parser{md: newMarkdownConverter()}
}

// Document runs readability on the markup and converts the main content to
// Markdown. Extraction never fails outright: when readability chokes or
// finds too little, the raw markup's visible text is used instead.
func (p *Parser) Document(markup, sourceURL string) Document {
	article, ok := readableArticle(markup, sourceURL)

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = titleTag(markup)
	}

	text, err := p.md.Convert(article.Content, sourceURL)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			slog.Warn("markdown conversion failed, using plain text",
				"url", sourceURL, "error", err)
		}
		text = strings.TrimSpace(article.TextContent)
	}

	if !ok && strings.TrimSpace(text) == "" {
		text = visibleText(markup)
	}

	return Document{
		Title: title,
		Text:  strings.TrimSpace(text),
		HTML:  article.Content,
	}
}

// readableArticle runs the Mozilla Readability algorithm with graceful
// fallbacks: any failure or a too-short extraction degrades to the raw
// markup so downstream always has something to work with.
func readableArticle(markup, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return fallbackArticle(markup), false
	}

	article, err := readability.FromReader(strings.NewReader(markup), parsedURL)
	if err != nil {
		slog.Warn("readability extraction failed, using raw markup",
			"url", sourceURL, "error", err)
		return fallbackArticle(markup), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minArticleLength {
		return readability.Article{
			Title:       article.Title,
			Byline:      article.Byline,
			Excerpt:     article.Excerpt,
			SiteName:    article.SiteName,
			Content:     markup,
			TextContent: visibleText(markup),
		}, false
	}

	return article, true
}

func fallbackArticle(markup string) readability.Article {
	return readability.Article{
		Content:     markup,
		TextContent: visibleText(markup),
	}
}

// Metadata collects page metadata: description, author, site name and all
// Open Graph properties, keyed by their meta names.
func Metadata(markup string) map[string]string {
	meta := map[string]string{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return meta
	}

	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		switch name {
		case "description", "author", "keywords":
			meta[name] = content
		}
	})

	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if content == "" || !strings.HasPrefix(prop, "og:") {
			return
		}
		meta[prop] = content
	})

	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}

	return meta
}

// visibleText extracts trimmed visible text from markup with script and
// style content removed.
func visibleText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text())
}

// titleTag returns the trimmed <title> content, or "".
func titleTag(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
