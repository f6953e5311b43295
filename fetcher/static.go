package fetcher

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 * 1024 * 1024

// staticClient performs plain HTTP fetches with a Chrome TLS fingerprint,
// which passes the TLS-level bot checks that reject Go's default hello.
type staticClient struct {
	proxy string
}

func newStaticClient(proxy string) *staticClient {
	return &staticClient{proxy: proxy}
}

// fetch retrieves the URL without executing any page scripts. Transport
// failures are recorded on the result, never returned as errors: a page
// that cannot be fetched statically is a signal, not a fault.
func (c *staticClient) fetch(ctx context.Context, target string) *transportResult {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, c.proxy)
		},
	}
	if c.proxy != "" {
		if proxyURL, err := url.Parse(c.proxy); err == nil &&
			(proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		slog.Warn("static fetch: build request failed", "url", target, "error", err)
		return &transportResult{}
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("static fetch failed", "url", target, "error", err)
		return &transportResult{}
	}
	defer resp.Body.Close()

	// Bot walls serve their challenge markup with 403/503, so the body is
	// read regardless of status and left to outcome classification.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("static fetch: read body failed", "url", target, "error", err)
		return &transportResult{statusCode: resp.StatusCode}
	}

	markup, encFailed := decodeBody(body, resp.Header.Get("Content-Type"))
	return &transportResult{
		markup:          markup,
		statusCode:      resp.StatusCode,
		hadBody:         len(body) > 0,
		encodingFailure: encFailed,
	}
}

// decodeBody converts a response body to UTF-8 based on the declared
// charset and in-document hints. A body that cannot be decoded is kept
// best-effort with invalid sequences replaced, and flagged.
func decodeBody(body []byte, contentType string) (string, bool) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�"), true
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�"), true
	}

	if !utf8.Valid(decoded) {
		return strings.ToValidUTF8(string(decoded), "�"), true
	}
	return string(decoded), false
}

// dialTLSChrome establishes a TLS connection presenting a Chrome
// fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	var rawConn net.Conn
	dialer := &net.Dialer{}

	if proxy != "" {
		if proxyURL, parseErr := url.Parse(proxy); parseErr == nil &&
			(proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			socksConn, socksErr := dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if socksErr != nil {
				return nil, socksErr
			}
			rawConn = socksConn
		}
	}

	if rawConn == nil {
		var err error
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := utls.UClient(rawConn, &utls.Config{
		ServerName: host,
	}, utls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
