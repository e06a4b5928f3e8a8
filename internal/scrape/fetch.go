package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (compatible; LeadFinder/1.0)"
	// DefaultTimeout bounds each page fetch.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 2 << 20
)

// Page is a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// PageFetcher downloads pages over plain HTTP with a fixed timeout.
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewPageFetcher creates a PageFetcher. Zero values select the defaults.
func NewPageFetcher(userAgent string, timeout time.Duration) *PageFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PageFetcher{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
	}
}

// Fetch downloads targetURL. Anything other than a 200 response, or an
// anti-bot wall, is an error.
func (f *PageFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if !isHTTPURL(targetURL) {
		return nil, eris.Errorf("scrape: not an http url: %q", targetURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("scrape: blocked (%s)", bt)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scrape: status %d", resp.StatusCode)
	}

	return &Page{URL: targetURL, StatusCode: resp.StatusCode, Body: body}, nil
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
