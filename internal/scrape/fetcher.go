package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// Browser-shaped request headers. The public pages serve a degraded shell to
// clients that do not look like a browser.
const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHTML       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguage   = "fr-FR,fr;q=0.9,en;q=0.8"
)

// Page is one fetched event page. StatusCode is zero when the request never
// reached the server.
type Page struct {
	Body       []byte
	StatusCode int
}

// Fetcher retrieves one page. Injectable so tests and the eager-scrape path
// share the extraction logic with the scheduler.
type Fetcher func(ctx context.Context, pageURL string) (Page, error)

// NewHTTPFetcher builds the production fetcher: pooled transport, redirects
// followed, browser headers, per-request deadline, optional outbound proxy
// (http, https, or socks5).
func NewHTTPFetcher(timeout time.Duration, proxyURL string) (Fetcher, error) {
	transport := &http.Transport{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("scrape proxy url: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5":
			dialer, err := xproxy.FromURL(u, xproxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("scrape proxy dialer: %w", err)
			}
			contextDialer, ok := dialer.(xproxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("scrape proxy %s: dialer does not support context", u.Scheme)
			}
			transport.DialContext = contextDialer.DialContext
		default:
			return nil, fmt.Errorf("scrape proxy scheme %q not supported", u.Scheme)
		}
	}

	client := &http.Client{Transport: transport}

	return func(ctx context.Context, pageURL string) (Page, error) {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return Page{}, err
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Accept", acceptHTML)
		req.Header.Set("Accept-Language", acceptLanguage)

		resp, err := client.Do(req)
		if err != nil {
			return Page{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Page{StatusCode: resp.StatusCode}, err
		}
		return Page{Body: body, StatusCode: resp.StatusCode}, nil
	}, nil
}
