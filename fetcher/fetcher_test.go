package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/justscrape/config"
	"github.com/use-agent/justscrape/extract"
	"github.com/use-agent/justscrape/models"
)

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		DefaultTimeout:   5 * time.Second,
		MaxTimeout:       10 * time.Second,
		MinContentLength: 200,
	}
}

// testFetcher builds a Fetcher whose rendered path is a stub; the static
// path runs for real against httptest servers.
func testFetcher(cfg config.FetcherConfig, render renderFunc) *Fetcher {
	f := &Fetcher{
		cfg:         cfg,
		static:      newStaticClient(""),
		parser:      extract.NewParser(),
		renderHosts: make(map[string]struct{}),
	}
	for d := range builtinRenderDomains {
		f.renderHosts[d] = struct{}{}
	}
	for _, d := range cfg.RenderDomains {
		f.renderHosts[strings.ToLower(d)] = struct{}{}
	}
	f.render = render
	return f
}

func articlePage(paragraphs int) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Test Article</title></head><body><article>")
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d of a reasonably long article body that keeps "+
			"going for a while so the extracted text clears the escalation "+
			"threshold with comfortable margin to spare.</p>", i)
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

func renderStub(calls *int, markup string) renderFunc {
	return func(_ context.Context, _ string) (*transportResult, error) {
		*calls++
		return &transportResult{
			markup:  markup,
			title:   "Rendered Title",
			hadBody: markup != "",
		}, nil
	}
}

func TestFetch_StaticSufficesWithoutEscalation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articlePage(8))
	}))
	defer srv.Close()

	renderCalls := 0
	f := testFetcher(testConfig(), renderStub(&renderCalls, articlePage(8)))

	res, err := f.Fetch(context.Background(), &models.FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if res.Method != models.MethodStatic {
		t.Errorf("method = %q, want static", res.Method)
	}
	if renderCalls != 0 {
		t.Errorf("rendered fetch ran %d times, want 0", renderCalls)
	}
	if res.Title != "Test Article" {
		t.Errorf("title = %q", res.Title)
	}
	if !res.HadMarkup || res.ContentLength() < 200 {
		t.Errorf("static result too thin: markup=%v length=%d", res.HadMarkup, res.ContentLength())
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", res.StatusCode)
	}
}

func TestFetch_ThinStaticEscalatesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div></body></html>`)
	}))
	defer srv.Close()

	renderCalls := 0
	f := testFetcher(testConfig(), renderStub(&renderCalls, articlePage(8)))

	res, err := f.Fetch(context.Background(), &models.FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if renderCalls != 1 {
		t.Fatalf("rendered fetch ran %d times, want exactly 1", renderCalls)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered after escalation", res.Method)
	}
	if res.ContentLength() < 200 {
		t.Errorf("escalated result still thin: %d", res.ContentLength())
	}
}

func TestFetch_ForcedStaticNeverEscalates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>almost nothing here</p></body></html>`)
	}))
	defer srv.Close()

	renderCalls := 0
	f := testFetcher(testConfig(), renderStub(&renderCalls, articlePage(8)))

	res, err := f.Fetch(context.Background(), &models.FetchRequest{
		URL:    srv.URL,
		Method: models.MethodStatic,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if renderCalls != 0 {
		t.Errorf("forced static still rendered %d times", renderCalls)
	}
	if res.Method != models.MethodStatic {
		t.Errorf("method = %q", res.Method)
	}
}

func TestFetch_RenderRequiredDomainSkipsStatic(t *testing.T) {
	cfg := testConfig()
	cfg.RenderDomains = []string{"example.test"}
	f := testFetcher(cfg, nil)

	tests := []struct {
		host string
		want bool
	}{
		{"reddit.com", true},
		{"www.reddit.com", true},
		{"old.reddit.com", true},
		{"x.com", true},
		{"example.test", true},
		{"example.com", false},
		{"notreddit.com", false},
	}
	for _, tt := range tests {
		if got := f.renderRequired(tt.host); got != tt.want {
			t.Errorf("renderRequired(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestFetch_RenderUnavailableKeepsStaticResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>thin shell</p></body></html>`)
	}))
	defer srv.Close()

	f := testFetcher(testConfig(), func(_ context.Context, _ string) (*transportResult, error) {
		return nil, errors.New("no chromium")
	})

	res, err := f.Fetch(context.Background(), &models.FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("a failed escalation must not fail the fetch: %v", err)
	}
	if res.Method != models.MethodStatic {
		t.Errorf("method = %q, want the static result kept", res.Method)
	}
	if !res.HadMarkup {
		t.Error("static markup should be preserved")
	}
}

func TestFetch_InvalidInput(t *testing.T) {
	f := testFetcher(testConfig(), nil)

	for _, target := range []string{"", "   ", "ftp://example.com/x", "not a url"} {
		res, err := f.Fetch(context.Background(), &models.FetchRequest{URL: target})
		if err == nil {
			t.Errorf("Fetch(%q) should error", target)
			continue
		}
		if res == nil {
			t.Errorf("Fetch(%q) returned a nil result", target)
		}
		var rerr *models.RetrieveError
		if !errors.As(err, &rerr) || rerr.Code != models.ErrCodeInvalidInput {
			t.Errorf("Fetch(%q) error = %v, want INVALID_INPUT", target, err)
		}
	}
}

func TestFetch_BotWallBodyIsReadDespiteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><head><title>Just a moment...</title></head>`+
			`<body>Checking your browser before accessing the site.</body></html>`)
	}))
	defer srv.Close()

	renderCalls := 0
	f := testFetcher(testConfig(), renderStub(&renderCalls, ""))

	res, err := f.Fetch(context.Background(), &models.FetchRequest{
		URL:    srv.URL,
		Method: models.MethodStatic,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 recorded", res.StatusCode)
	}
	if !res.HadMarkup {
		t.Error("challenge body must be kept for classification")
	}
	if !strings.Contains(res.Title, "Just a moment") {
		t.Errorf("title = %q, want the challenge title", res.Title)
	}
}

func TestFetch_FacetGating(t *testing.T) {
	page := `<html><head><title>Faceted</title>
	  <meta name="description" content="desc"></head><body>
	  <article><p>` + strings.Repeat("Body text. ", 60) + `</p></article>
	  <a href="/next">Next</a>
	  <img src="/pic.png" alt="pic">
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := testFetcher(testConfig(), nil)

	res, err := f.Fetch(context.Background(), &models.FetchRequest{
		URL:    srv.URL,
		Method: models.MethodStatic,
		Facets: []models.Facet{models.FacetLinks, models.FacetImages, models.FacetRawHTML},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(res.Links) == 0 {
		t.Error("links facet requested but empty")
	}
	if len(res.Images) != 1 {
		t.Errorf("images facet: got %d, want 1", len(res.Images))
	}
	if !strings.Contains(res.RawHTML, "<article>") {
		t.Error("raw_html facet requested but missing markup")
	}
	if res.Metadata != nil {
		t.Error("metadata facet not requested but populated")
	}
	if res.Text == "" {
		t.Error("text is always extracted")
	}
}

func TestDecodeBody(t *testing.T) {
	t.Run("latin1 declared in header", func(t *testing.T) {
		body := []byte("caf\xe9 soci\xe9t\xe9")
		decoded, failed := decodeBody(body, "text/html; charset=iso-8859-1")
		if failed {
			t.Fatal("decodable body flagged as failure")
		}
		if !strings.Contains(decoded, "café") {
			t.Errorf("decoded = %q", decoded)
		}
	})

	t.Run("invalid bytes flagged", func(t *testing.T) {
		body := []byte("ok \xff\xfe\xfd broken")
		decoded, failed := decodeBody(body, "text/html; charset=utf-8")
		if !failed {
			t.Error("undecodable body must set the failure signal")
		}
		if decoded == "" {
			t.Error("best-effort text must still be returned")
		}
	})
}
