package fetcher

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// heavyResourceTypes are sub-resources a text retrieval never needs.
// Blocking them cuts rendered fetch time and bandwidth substantially.
var heavyResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage: {},
	proto.NetworkResourceTypeFont:  {},
	proto.NetworkResourceTypeMedia: {},
}

// trackerDomains is a set of well-known ad and tracking domains whose
// sub-requests are aborted during rendered fetches.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"connect.facebook.net":   {},
	"fbcdn.net":              {},
	"adnxs.com":              {},
	"adsrvr.org":             {},
	"amazon-adsystem.com":    {},
	"criteo.com":             {},
	"criteo.net":             {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"moatads.com":            {},
	"pubmatic.com":           {},
	"rubiconproject.com":     {},
	"scorecardresearch.com":  {},
	"quantserve.com":         {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"analytics.twitter.com":  {},
	"ads-twitter.com":        {},
	"static.ads-twitter.com": {},
	"chartbeat.com":          {},
	"chartbeat.net":          {},
	"optimizely.com":         {},
	"openx.net":              {},
	"casalemedia.com":        {},
	"demdex.net":             {},
	"krxd.net":               {},
	"bluekai.com":            {},
	"mathtag.com":            {},
	"serving-sys.com":        {},
	"rlcdn.com":              {},
	"sharethis.com":          {},
	"addthis.com":            {},
}

// isTrackerDomain checks the hostname and all parent domains against the
// tracker blocklist.
func isTrackerDomain(host string) bool {
	host = strings.ToLower(host)
	if _, ok := trackerDomains[host]; ok {
		return true
	}
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := trackerDomains[host]; ok {
			return true
		}
	}
}

// mountResourceFilter installs a request interceptor that aborts heavy
// sub-resources and tracker requests. Returns the running router so the
// caller can defer Stop.
func mountResourceFilter(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()

	// Pattern "*" with an empty resource type intercepts everything; the
	// per-request callback decides what to abort.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, heavy := heavyResourceTypes[ctx.Request.Type()]; heavy {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		if u, err := url.Parse(ctx.Request.URL().String()); err == nil {
			if isTrackerDomain(u.Hostname()) {
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop, so it lives in its own goroutine.
	go router.Run()

	return router
}
