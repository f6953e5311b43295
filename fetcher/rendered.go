package fetcher

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/justscrape/browser"
	"github.com/use-agent/justscrape/config"
)

// rodRenderer produces fully rendered markup through the shared browser
// session. Each render opens a fresh tab and closes it before returning;
// the session itself stays warm in the pool.
type rodRenderer struct {
	pool *browser.Pool
	cfg  config.FetcherConfig
}

// render navigates a fresh tab to the target and reads the markup after
// scripts have settled.
//
// The error return is reserved for session-initialization failure; a page
// that fails to navigate or render comes back as an empty transportResult.
//
// Order matters inside:
//   - stealth and header setup must precede navigation or they do not
//     apply to the loaded document;
//   - the request-idle listener must be registered before Navigate or
//     in-flight requests are missed and the wait returns instantly.
func (r *rodRenderer) render(ctx context.Context, target string) (*transportResult, error) {
	page, err := r.pool.Page()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("page close failed", "url", target, "error", closeErr)
		}
	}()

	if r.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without",
				"url", target, "error", evalErr)
		}
	}

	// A Google search referer makes direct navigation look like a
	// click-through, which several bot walls treat more leniently.
	if u, parseErr := url.Parse(target); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// The hijack router uses the Fetch CDP domain, which conflicts with
	// WaitRequestIdle on recent Chromium. With trackers blocked the wait
	// strategy degrades to DOM stability.
	var router *rod.HijackRouter
	if r.cfg.BlockTrackers {
		router = mountResourceFilter(page)
		defer func() { _ = router.Stop() }()
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()
	p := page.Context(navCtx)

	var waitIdle func()
	if router == nil {
		waitIdle = p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	}

	if navErr := p.Navigate(target); navErr != nil {
		slog.Warn("rendered navigation failed", "url", target, "error", navErr)
		return &transportResult{}, nil
	}

	if waitIdle != nil {
		waitIdle()
	} else if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("DOM did not stabilize, reading current state",
			"url", target, "error", stableErr)
	}

	// Fixed settle pause: lets deferred scripts finish after the network
	// goes quiet, bounded by the request context.
	settle(ctx, r.cfg.SettleDelay)

	statusCode := navigationStatus(page.Context(ctx))

	markup, htmlErr := page.Context(ctx).HTML()
	if htmlErr != nil {
		slog.Warn("rendered markup read failed", "url", target, "error", htmlErr)
		return &transportResult{statusCode: statusCode}, nil
	}

	return &transportResult{
		markup:     markup,
		title:      evalStringOrEmpty(page.Context(ctx), `() => document.title`),
		statusCode: statusCode,
		hadBody:    markup != "",
	}, nil
}

func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// navigationStatus reads the HTTP status of the navigation from the
// performance timeline, which needs no CDP event listeners.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression, swallowing errors. Used for
// optional metadata only.
func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
