package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/use-agent/justscrape/models"
)

// fakeRetriever serves canned fetch results keyed by URL.
type fakeRetriever struct {
	mu      sync.Mutex
	results map[string]*models.FetchResult
	errs    map[string]error
	panics  map[string]bool
	calls   []string
	active  atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRetriever) Fetch(_ context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	cur := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.mu.Unlock()

	if f.panics[req.URL] {
		panic("retriever exploded on " + req.URL)
	}
	if err, ok := f.errs[req.URL]; ok {
		return &models.FetchResult{URL: req.URL}, err
	}
	if res, ok := f.results[req.URL]; ok {
		return res, nil
	}
	return &models.FetchResult{URL: req.URL}, nil
}

// fakeSearcher returns a fixed result list.
type fakeSearcher struct {
	resp *models.SearchResponse
}

func (f *fakeSearcher) Search(_ context.Context, query string, count int) *models.SearchResponse {
	if f.resp != nil {
		return f.resp
	}
	return &models.SearchResponse{Query: query, Success: false, Error: "no searcher configured"}
}

func usableResult(url, body string) *models.FetchResult {
	return &models.FetchResult{
		URL:       url,
		Title:     "Title of " + url,
		Text:      body,
		Method:    models.MethodStatic,
		HadMarkup: true,
	}
}

func longArticle(seed string) string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%s paragraph %d discussing the subject at meaningful length.\n\n", seed, i)
	}
	return b.String()
}

func searchResults(urls ...string) *models.SearchResponse {
	results := make([]models.SearchResult, len(urls))
	for i, u := range urls {
		results[i] = models.SearchResult{
			Position: i + 1,
			Title:    "Result " + u,
			URL:      u,
			Snippet:  "snippet for " + u,
			Source:   "duckduckgo",
		}
	}
	return &models.SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Success:      true,
	}
}

func TestRetrieve_ClassifiesAndCarriesSignals(t *testing.T) {
	body := longArticle("Signals")
	o := New(&fakeRetriever{results: map[string]*models.FetchResult{
		"https://a.example/post": usableResult("https://a.example/post", body),
	}}, &fakeSearcher{}, nil)

	resp := o.Retrieve(context.Background(), &models.FetchRequest{URL: "https://a.example/post"})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Classification.Status != models.StatusUsable {
		t.Errorf("status = %q", resp.Classification.Status)
	}
	if resp.Signals.ContentLength != len(body) {
		t.Errorf("content_length = %d, want %d", resp.Signals.ContentLength, len(body))
	}
	if resp.Signals.TokensEstimate == 0 {
		t.Error("tokens_estimate should be populated")
	}
	if resp.Content != body {
		t.Error("content should carry the extracted text")
	}
}

func TestResearch_SplitsUsableFromFailures(t *testing.T) {
	blockedBody := "Verify you are human by completing the CAPTCHA below."
	fr := &fakeRetriever{results: map[string]*models.FetchResult{
		"https://good.example/1": usableResult("https://good.example/1", longArticle("Alpha")),
		"https://wall.example/2": {
			URL: "https://wall.example/2", Title: "Just a moment...",
			Text: blockedBody, Method: models.MethodStatic, HadMarkup: true,
		},
		"https://good.example/3": usableResult("https://good.example/3", longArticle("Gamma")),
	}}
	o := New(fr, &fakeSearcher{resp: searchResults(
		"https://good.example/1", "https://wall.example/2", "https://good.example/3",
	)}, nil)

	resp := o.Research(context.Background(), "test query", Options{AllowRendering: true})

	if resp.SearchError != "" {
		t.Fatalf("search error: %s", resp.SearchError)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(resp.Sources))
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(resp.Failures))
	}

	// Rank order survives concurrent completion.
	if resp.Sources[0].Position != 1 || resp.Sources[1].Position != 3 {
		t.Errorf("source positions = %d, %d; want 1, 3",
			resp.Sources[0].Position, resp.Sources[1].Position)
	}

	blocked := resp.Failures[0]
	if blocked.Status != models.StatusBlocked || blocked.Position != 2 {
		t.Errorf("failure = %+v", blocked)
	}
	if len(blocked.Reason) == 0 {
		t.Error("failures must carry classifier evidence")
	}
	if blocked.Content != "" {
		t.Error("failures never carry content")
	}

	m := resp.Metrics
	if m.Total != 3 || m.UsableCount != 2 || m.BlockedCount != 1 || m.ThinCount != 0 {
		t.Errorf("metrics = %+v", m)
	}
	if m.UsableRate != 0.67 {
		t.Errorf("usable_rate = %v, want 0.67", m.UsableRate)
	}
}

func TestResearch_AllBlockedYieldsEmptySourcesAndZeroRate(t *testing.T) {
	wall := &models.FetchResult{
		Title: "Just a moment...", Text: "Checking your browser before accessing.",
		Method: models.MethodStatic, HadMarkup: true,
	}
	results := map[string]*models.FetchResult{}
	urls := make([]string, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://wall%d.example/", i)
		w := *wall
		w.URL = urls[i]
		results[urls[i]] = &w
	}

	o := New(&fakeRetriever{results: results}, &fakeSearcher{resp: searchResults(urls...)}, nil)
	resp := o.Research(context.Background(), "walled query", Options{})

	if len(resp.Sources) != 0 {
		t.Errorf("sources = %v, want none", resp.Sources)
	}
	if len(resp.Failures) != 5 {
		t.Errorf("failures = %d, want 5", len(resp.Failures))
	}
	if resp.Metrics.UsableRate != 0.0 || resp.Metrics.BlockedCount != 5 {
		t.Errorf("metrics = %+v", resp.Metrics)
	}
}

func TestResearch_SearchFailurePropagates(t *testing.T) {
	o := New(&fakeRetriever{}, &fakeSearcher{resp: &models.SearchResponse{
		Success: false, Error: "rate limited upstream",
	}}, nil)

	resp := o.Research(context.Background(), "q", Options{})
	if resp.SearchError != "rate limited upstream" {
		t.Errorf("search_error = %q", resp.SearchError)
	}
	if len(resp.Sources) != 0 || len(resp.Failures) != 0 {
		t.Error("a failed search retrieves nothing")
	}
	if resp.Metrics.Total != 0 {
		t.Errorf("metrics = %+v", resp.Metrics)
	}
}

func TestResearch_PanicBecomesFailureEntry(t *testing.T) {
	fr := &fakeRetriever{
		results: map[string]*models.FetchResult{
			"https://ok.example/": usableResult("https://ok.example/", longArticle("Ok")),
		},
		panics: map[string]bool{"https://boom.example/": true},
	}
	o := New(fr, &fakeSearcher{resp: searchResults(
		"https://ok.example/", "https://boom.example/",
	)}, nil)

	resp := o.Research(context.Background(), "q", Options{})

	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want the surviving retrieval", len(resp.Sources))
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("failures = %d, want the panicked entry", len(resp.Failures))
	}
	f := resp.Failures[0]
	if f.Status != models.StatusError || f.Position != 2 {
		t.Errorf("failure = %+v", f)
	}
	if len(f.Reason) == 0 || !strings.Contains(f.Reason[0], "exploded") {
		t.Errorf("reason = %v, want the panic message", f.Reason)
	}
}

func TestResearch_TruncatesLongContent(t *testing.T) {
	body := longArticle("Long")
	o := New(&fakeRetriever{results: map[string]*models.FetchResult{
		"https://long.example/": usableResult("https://long.example/", body),
	}}, &fakeSearcher{resp: searchResults("https://long.example/")}, nil)

	resp := o.Research(context.Background(), "q", Options{MaxContentChars: 500})

	content := resp.Sources[0].Content
	marker := fmt.Sprintf("[Truncated - %d total chars]", len(body))
	if !strings.HasSuffix(content, marker) {
		t.Errorf("content should end with %q, got tail %q", marker, content[len(content)-60:])
	}
	if !strings.HasPrefix(content, body[:500]) {
		t.Error("content prefix must be the original text")
	}
}

func TestResearch_MarksDuplicateSources(t *testing.T) {
	article := longArticle("Syndicated")
	fr := &fakeRetriever{results: map[string]*models.FetchResult{
		"https://origin.example/": usableResult("https://origin.example/", article),
		"https://mirror.example/": usableResult("https://mirror.example/", article+"\nVia newswire."),
	}}
	o := New(fr, &fakeSearcher{resp: searchResults(
		"https://origin.example/", "https://mirror.example/",
	)}, nil)

	resp := o.Research(context.Background(), "q", Options{})

	if len(resp.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(resp.Sources))
	}
	origin, mirror := resp.Sources[0], resp.Sources[1]
	if origin.DuplicateOf != 0 || origin.Content == "" {
		t.Errorf("origin = %+v, should keep its content", origin)
	}
	if mirror.DuplicateOf != origin.Position {
		t.Errorf("mirror.DuplicateOf = %d, want %d", mirror.DuplicateOf, origin.Position)
	}
	if mirror.Content != "" {
		t.Error("duplicate content is dropped in favor of the original")
	}
}

func TestResearch_BoundsConcurrency(t *testing.T) {
	results := map[string]*models.FetchResult{}
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site%d.example/", i)
		results[urls[i]] = usableResult(urls[i], longArticle(fmt.Sprintf("Site%d", i)))
	}

	fr := &fakeRetriever{results: results}
	o := New(fr, &fakeSearcher{resp: searchResults(urls...)}, nil)

	o.Research(context.Background(), "q", Options{Concurrency: 2})

	if peak := fr.peak.Load(); peak > 2 {
		t.Errorf("peak concurrent retrievals = %d, want <= 2", peak)
	}
	if len(fr.calls) != 8 {
		t.Errorf("retriever called %d times, want 8", len(fr.calls))
	}
}

func TestResearch_StaticOnlyWhenRenderingDisallowed(t *testing.T) {
	var gotMethod models.FetchMethod
	fr := &methodCapturingRetriever{method: &gotMethod}
	o := New(fr, &fakeSearcher{resp: searchResults("https://a.example/")}, nil)

	o.Research(context.Background(), "q", Options{AllowRendering: false})
	if gotMethod != models.MethodStatic {
		t.Errorf("method = %q, want static when rendering disallowed", gotMethod)
	}

	o.Research(context.Background(), "q", Options{AllowRendering: true})
	if gotMethod != models.MethodAuto {
		t.Errorf("method = %q, want auto when rendering allowed", gotMethod)
	}
}

type methodCapturingRetriever struct {
	method *models.FetchMethod
}

func (m *methodCapturingRetriever) Fetch(_ context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	*m.method = req.Method
	return &models.FetchResult{URL: req.URL}, nil
}

func TestExtractURLs(t *testing.T) {
	fr := &fakeRetriever{results: map[string]*models.FetchResult{
		"https://example.com/": {
			URL: "https://example.com/", HadMarkup: true,
			Links: []models.Link{
				{Href: "https://example.com/post#top"},
				{Href: "https://doubleclick.net/thing"},
				{Href: "https://other.example.net/page"},
			},
		},
	}}
	o := New(fr, &fakeSearcher{}, nil)

	resp, err := o.ExtractURLs(context.Background(), "https://example.com/", false)
	if err != nil {
		t.Fatalf("ExtractURLs: %v", err)
	}
	if resp.Count != 2 || resp.JunkFiltered != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.URLs[0] != "https://example.com/post" {
		t.Errorf("fragment not stripped: %q", resp.URLs[0])
	}

	internal, err := o.ExtractURLs(context.Background(), "https://example.com/", true)
	if err != nil {
		t.Fatalf("ExtractURLs same-host: %v", err)
	}
	if internal.Count != 1 {
		t.Errorf("same-host count = %d, want 1", internal.Count)
	}
}
