// Package fetcher selects and executes the fetch method for a page:
// static HTTP first, escalating once to a rendered fetch when the static
// result is too thin, with known script-dependent domains going straight
// to the browser.
package fetcher

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/use-agent/justscrape/browser"
	"github.com/use-agent/justscrape/config"
	"github.com/use-agent/justscrape/extract"
	"github.com/use-agent/justscrape/models"
)

// builtinRenderDomains are registrable domains that never serve useful
// markup to a static client. Always fetched rendered.
var builtinRenderDomains = map[string]struct{}{
	"twitter.com":   {},
	"x.com":         {},
	"reddit.com":    {},
	"youtube.com":   {},
	"instagram.com": {},
	"facebook.com":  {},
	"linkedin.com":  {},
	"medium.com":    {},
	"substack.com":  {},
	"discord.com":   {},
}

// transportResult is the raw outcome of a transport-level fetch, before
// facet extraction.
type transportResult struct {
	markup          string
	title           string // rendered fetches capture document.title directly
	statusCode      int
	hadBody         bool
	encodingFailure bool
}

// renderFunc runs a rendered fetch. The error return is reserved for
// session-initialization failure.
type renderFunc func(ctx context.Context, target string) (*transportResult, error)

// Fetcher retrieves pages and extracts the requested facets.
type Fetcher struct {
	cfg         config.FetcherConfig
	static      *staticClient
	render      renderFunc
	parser      *extract.Parser
	renderHosts map[string]struct{}
}

// New creates a Fetcher backed by the given browser pool. The proxy, when
// non-empty, applies to static fetches.
func New(cfg config.FetcherConfig, proxy string, pool *browser.Pool) *Fetcher {
	f := &Fetcher{
		cfg:         cfg,
		static:      newStaticClient(proxy),
		parser:      extract.NewParser(),
		renderHosts: make(map[string]struct{}, len(builtinRenderDomains)+len(cfg.RenderDomains)),
	}
	for d := range builtinRenderDomains {
		f.renderHosts[d] = struct{}{}
	}
	for _, d := range cfg.RenderDomains {
		f.renderHosts[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	f.render = (&rodRenderer{pool: pool, cfg: cfg}).render
	return f
}

// Fetch retrieves a page and extracts the requested facets.
//
// The returned FetchResult is always non-nil. The error return is non-nil
// only for invalid input and for rendered fetches that could not obtain a
// browser session; every ordinary transport or encoding failure is
// represented on the result itself.
func (f *Fetcher) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return &models.FetchResult{}, models.NewRetrieveError(
			models.ErrCodeInvalidInput, "url is required", nil)
	}

	// The request is cloned so defaults never leak back to the caller.
	r := *req
	r.Defaults()

	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &models.FetchResult{URL: r.URL}, models.NewRetrieveError(
			models.ErrCodeInvalidInput, "url must be absolute http(s)", err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = f.cfg.DefaultTimeout
	}
	if timeout > f.cfg.MaxTimeout {
		timeout = f.cfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := r.Method
	if method == models.MethodAuto && f.renderRequired(u.Hostname()) {
		slog.Debug("render-required domain, skipping static fetch",
			"url", r.URL, "host", u.Hostname())
		method = models.MethodRendered
	}

	switch method {
	case models.MethodStatic:
		return f.assemble(&r, f.static.fetch(ctx, r.URL), models.MethodStatic), nil

	case models.MethodRendered:
		tr, renderErr := f.render(ctx, r.URL)
		if renderErr != nil {
			return &models.FetchResult{URL: r.URL, Method: models.MethodRendered}, renderErr
		}
		return f.assemble(&r, tr, models.MethodRendered), nil

	default:
		// Static first, with one-shot escalation.
		res := f.assemble(&r, f.static.fetch(ctx, r.URL), models.MethodStatic)
		if !f.needsEscalation(res) {
			return res, nil
		}

		slog.Info("escalating to rendered fetch",
			"url", r.URL, "static_length", res.ContentLength(), "status", res.StatusCode)

		tr, renderErr := f.render(ctx, r.URL)
		if renderErr != nil {
			// The static result, thin as it is, beats nothing when no
			// browser session is available.
			slog.Warn("escalation unavailable, keeping static result",
				"url", r.URL, "error", renderErr)
			return res, nil
		}

		rendered := f.assemble(&r, tr, models.MethodRendered)
		if !rendered.HadMarkup && res.HadMarkup {
			return res, nil
		}
		return rendered, nil
	}
}

// renderRequired reports whether the host's registrable domain is in the
// always-render set.
func (f *Fetcher) renderRequired(host string) bool {
	host = strings.ToLower(host)
	if _, ok := f.renderHosts[host]; ok {
		return true
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	_, ok := f.renderHosts[etld1]
	return ok
}

// needsEscalation applies the single escalation rule: a static fetch that
// produced no body, or less extracted text than the configured minimum,
// gets one rendered attempt.
func (f *Fetcher) needsEscalation(res *models.FetchResult) bool {
	if !res.HadMarkup {
		return true
	}
	return res.ContentLength() < f.cfg.MinContentLength
}

// assemble turns a transport result into a FetchResult, running facet
// extraction on the markup.
func (f *Fetcher) assemble(req *models.FetchRequest, tr *transportResult, method models.FetchMethod) *models.FetchResult {
	res := &models.FetchResult{
		URL:             req.URL,
		StatusCode:      tr.statusCode,
		Method:          method,
		HadMarkup:       tr.hadBody,
		EncodingFailure: tr.encodingFailure,
	}
	if !tr.hadBody {
		return res
	}

	markup := tr.markup
	if req.Selector != "" {
		selected, selErr := extract.ApplyCSSSelector(markup, req.Selector)
		if selErr != nil {
			slog.Warn("selector rejected, extracting from full markup",
				"url", req.URL, "selector", req.Selector, "error", selErr)
		} else {
			markup = selected
		}
	}

	doc := f.parser.Document(markup, req.URL)
	res.Title = doc.Title
	if res.Title == "" {
		res.Title = tr.title
	}
	res.Text = doc.Text

	if req.WantsFacet(models.FacetMetadata) {
		res.Metadata = extract.Metadata(markup)
	}
	if req.WantsFacet(models.FacetLinks) {
		res.Links = extract.Links(markup, req.URL)
	}
	if req.WantsFacet(models.FacetImages) {
		res.Images = extract.Images(markup, req.URL)
	}
	if req.WantsFacet(models.FacetRawHTML) {
		res.RawHTML = tr.markup
	}

	return res
}
