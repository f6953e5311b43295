// Package research composes search, retrieval and classification into the
// two high-level operations callers actually want: retrieve one source
// with a verdict, and research a query across many sources at once.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"

	"github.com/use-agent/justscrape/classify"
	"github.com/use-agent/justscrape/dedupe"
	"github.com/use-agent/justscrape/extract"
	"github.com/use-agent/justscrape/models"
	"github.com/use-agent/justscrape/registry"
)

// Retriever fetches a single page. Satisfied by fetcher.Fetcher.
type Retriever interface {
	Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error)
}

// Searcher runs a web search. Satisfied by search.Client.
type Searcher interface {
	Search(ctx context.Context, query string, count int) *models.SearchResponse
}

// Options bound a research batch.
type Options struct {
	// MaxSources is how many search results to retrieve. Default 5.
	MaxSources int

	// MaxContentChars truncates each usable source's content. Default 5000.
	MaxContentChars int

	// Concurrency bounds parallel retrievals. Default 3.
	Concurrency int

	// AllowRendering permits escalation to rendered fetches. When false
	// every retrieval is forced static.
	AllowRendering bool
}

func (o *Options) defaults() {
	if o.MaxSources <= 0 {
		o.MaxSources = 5
	}
	if o.MaxContentChars <= 0 {
		o.MaxContentChars = 5000
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
}

// Orchestrator wires retrieval, search, classification and the sitemap
// registry together. The registry is optional; when present, usable
// retrievals are recorded against it.
type Orchestrator struct {
	retriever Retriever
	searcher  Searcher
	reg       *registry.Registry
}

// New creates an Orchestrator. reg may be nil.
func New(retriever Retriever, searcher Searcher, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{retriever: retriever, searcher: searcher, reg: reg}
}

// Retrieve fetches one page and classifies the outcome. The response is
// always non-nil: hard failures surface in the Error field alongside
// whatever signals were gathered.
func (o *Orchestrator) Retrieve(ctx context.Context, req *models.FetchRequest) *models.RetrieveResponse {
	resp := &models.RetrieveResponse{URL: req.URL}

	res, err := o.retriever.Fetch(ctx, req)
	if err != nil {
		var rerr *models.RetrieveError
		if errors.As(err, &rerr) {
			resp.Error = rerr.ToDetail()
		} else {
			resp.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
		}
	}

	if res != nil {
		resp.Title = res.Title
		resp.Content = res.Text
		resp.Metadata = res.Metadata
		resp.Links = res.Links
		resp.Images = res.Images
		resp.Signals = signalsFrom(res)
		resp.Classification = classify.Classify(res.Text, res.Title, res.HadMarkup, res.EncodingFailure)
	}

	if o.reg != nil && resp.Classification.Usable() {
		if markErr := o.reg.MarkScraped(ctx, req.URL); markErr != nil {
			slog.Debug("registry mark failed", "url", req.URL, "error", markErr)
		}
	}

	return resp
}

// Research searches the query and retrieves the top results concurrently,
// splitting usable sources from failures. Source order always follows
// search rank, regardless of retrieval completion order.
func (o *Orchestrator) Research(ctx context.Context, query string, opts Options) *models.ResearchResponse {
	opts.defaults()

	searchResp := o.searcher.Search(ctx, query, opts.MaxSources)
	if !searchResp.Success {
		msg := searchResp.Error
		if msg == "" {
			msg = "search failed"
		}
		return &models.ResearchResponse{
			Query:       query,
			Sources:     []models.SourceEntry{},
			Failures:    []models.SourceEntry{},
			SearchError: msg,
		}
	}

	outcomes := make([]*sourceOutcome, len(searchResp.Results))

	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.Concurrency)

	for i, sr := range searchResp.Results {
		if sr.URL == "" {
			continue
		}

		wg.Add(1)
		go func(i int, sr models.SearchResult) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// A panicking retrieval must cost one entry, not the batch.
			defer func() {
				if r := recover(); r != nil {
					slog.Error("retrieval panicked", "url", sr.URL, "panic", r)
					outcomes[i] = &sourceOutcome{entry: models.SourceEntry{
						Position: sr.Position,
						URL:      sr.URL,
						Title:    sr.Title,
						Status:   models.StatusError,
						Reason:   []string{fmt.Sprint(r)},
					}}
				}
			}()

			outcomes[i] = o.retrieveOne(ctx, sr, opts)
		}(i, sr)
	}
	wg.Wait()

	sources := []models.SourceEntry{}
	failures := []models.SourceEntry{}
	detector := dedupe.NewDetector(dedupe.DefaultThreshold)
	posByURL := map[string]int{}

	for _, oc := range outcomes {
		if oc == nil {
			continue
		}
		e := oc.entry
		if e.Status != models.StatusUsable {
			failures = append(failures, e)
			continue
		}

		if origKey, dup := detector.Check(e.URL, oc.text); dup {
			e.DuplicateOf = posByURL[origKey]
			e.Content = "" // the original carries it
		} else {
			posByURL[e.URL] = e.Position
		}
		sources = append(sources, e)
	}

	total := len(sources) + len(failures)
	metrics := models.ResearchMetrics{
		Total:       total,
		UsableCount: len(sources),
	}
	if total > 0 {
		metrics.UsableRate = math.Round(float64(len(sources))/float64(total)*100) / 100
	}
	for _, f := range failures {
		switch f.Status {
		case models.StatusBlocked:
			metrics.BlockedCount++
		case models.StatusThin:
			metrics.ThinCount++
		}
	}

	return &models.ResearchResponse{
		Query:    query,
		Sources:  sources,
		Failures: failures,
		Metrics:  metrics,
	}
}

// sourceOutcome pairs a batch entry with the untruncated text used for
// duplicate detection.
type sourceOutcome struct {
	entry models.SourceEntry
	text  string
}

// retrieveOne fetches and classifies a single search result into a
// SourceEntry.
func (o *Orchestrator) retrieveOne(ctx context.Context, sr models.SearchResult, opts Options) *sourceOutcome {
	method := models.MethodAuto
	if !opts.AllowRendering {
		method = models.MethodStatic
	}

	resp := o.Retrieve(ctx, &models.FetchRequest{URL: sr.URL, Method: method})

	entry := models.SourceEntry{
		Position:      sr.Position,
		URL:           sr.URL,
		Title:         resp.Title,
		Snippet:       sr.Snippet,
		Status:        resp.Classification.Status,
		Method:        resp.Signals.Method,
		ContentLength: resp.Signals.ContentLength,
	}
	if entry.Title == "" {
		entry.Title = sr.Title
	}

	if resp.Error != nil {
		entry.Status = models.StatusError
		entry.Reason = []string{resp.Error.Message}
		return &sourceOutcome{entry: entry}
	}

	if entry.Status == models.StatusUsable {
		entry.Content = truncate(resp.Content, opts.MaxContentChars)
		return &sourceOutcome{entry: entry, text: resp.Content}
	}

	entry.Reason = resp.Classification.DetectedPatterns
	return &sourceOutcome{entry: entry}
}

// ExtractURLs performs one-level link discovery on a page, with junk
// links filtered and fragments stripped.
func (o *Orchestrator) ExtractURLs(ctx context.Context, target string, sameHostOnly bool) (*models.URLsResponse, error) {
	res, err := o.retriever.Fetch(ctx, &models.FetchRequest{
		URL:    target,
		Facets: []models.Facet{models.FacetLinks},
	})
	if err != nil {
		return nil, err
	}

	kept, junk := extract.FilterJunkLinks(res.Links)

	base, parseErr := url.Parse(target)
	if parseErr != nil {
		return nil, models.NewRetrieveError(models.ErrCodeInvalidInput, "invalid source url", parseErr)
	}

	urls := []string{}
	seen := map[string]struct{}{}
	for _, link := range kept {
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

	return &models.URLsResponse{
		SourceURL:    target,
		URLs:         urls,
		Count:        len(urls),
		JunkFiltered: junk,
	}, nil
}

// truncate cuts content at the limit, appending the total-length marker.
func truncate(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	return content[:limit] + fmt.Sprintf("\n\n[Truncated - %d total chars]", len(content))
}

func signalsFrom(res *models.FetchResult) models.Signals {
	return models.Signals{
		ContentLength:   res.ContentLength(),
		Method:          res.Method,
		HadMarkup:       res.HadMarkup,
		EncodingFailure: res.EncodingFailure,
		TokensEstimate:  extract.EstimateTokens(res.Text),
	}
}
