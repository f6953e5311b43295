package models

import "time"

// FetchMethod identifies how a page is fetched.
type FetchMethod string

const (
	// MethodAuto lets the selector decide between static and rendered.
	MethodAuto FetchMethod = "auto"

	// MethodStatic fetches via plain HTTP without executing page scripts.
	MethodStatic FetchMethod = "static"

	// MethodRendered fetches via a headless browser that executes scripts
	// before the markup is read.
	MethodRendered FetchMethod = "rendered"
)

// Facet names a kind of content to extract from a fetched page.
type Facet string

const (
	FacetText     Facet = "text"
	FacetMetadata Facet = "metadata"
	FacetLinks    Facet = "links"
	FacetImages   Facet = "images"
	FacetRawHTML  Facet = "raw_html"
)

// FetchRequest describes a single page retrieval. It is immutable per call:
// the fetcher clones it before making any adjustment.
type FetchRequest struct {
	// URL is the target page. Required.
	URL string

	// Facets lists the content kinds to extract. Empty means text + metadata.
	Facets []Facet

	// Method forces a fetch method. Default: MethodAuto.
	Method FetchMethod

	// Selector is an optional CSS selector applied to the markup before
	// content extraction. When set, only matched elements are parsed.
	Selector string

	// Timeout bounds the entire fetch (navigation + rendering + extraction).
	// Zero means the configured default.
	Timeout time.Duration
}

// Defaults applies default values to unset fields.
func (r *FetchRequest) Defaults() {
	if len(r.Facets) == 0 {
		r.Facets = []Facet{FacetText, FacetMetadata}
	}
	if r.Method == "" {
		r.Method = MethodAuto
	}
}

// WantsFacet reports whether the request asked for the given facet.
func (r *FetchRequest) WantsFacet(f Facet) bool {
	for _, have := range r.Facets {
		if have == f {
			return true
		}
	}
	return false
}

// FetchResult is the unified output of a fetch. It is produced once per
// fetch and never mutated afterwards. Ordinary transport failures are
// represented as data (zero status, empty content, HadMarkup=false), not
// as errors.
type FetchResult struct {
	// URL is the requested URL.
	URL string

	// Title is the page title, when one could be determined.
	Title string

	// Text is the extracted clean text. Always populated when a body was
	// obtained, since downstream outcome classification depends on it.
	Text string

	// Metadata holds page metadata (description, author, og:* tags).
	Metadata map[string]string

	// Links holds extracted hyperlinks, when FacetLinks was requested.
	Links []Link

	// Images holds extracted images, when FacetImages was requested.
	Images []Image

	// RawHTML is the page markup, when FacetRawHTML was requested.
	RawHTML string

	// StatusCode is the transport status code. Zero when the request
	// failed before a response was obtained.
	StatusCode int

	// Method records which fetch method actually produced this result.
	Method FetchMethod

	// HadMarkup reports whether a response body was obtained at all.
	HadMarkup bool

	// EncodingFailure reports that a body was obtained but its text could
	// not be decoded. Recorded as a signal, never propagated as an error.
	EncodingFailure bool
}

// ContentLength returns the length of the extracted text in bytes.
func (r *FetchResult) ContentLength() int {
	return len(r.Text)
}

// Link is a hyperlink extracted from a page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Image is an image element extracted from a page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}
