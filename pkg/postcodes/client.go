// Package postcodes resolves UK postcodes to coordinates via postcodes.io.
package postcodes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.postcodes.io"

// ErrNotFound is returned when postcodes.io does not recognise the postcode.
var ErrNotFound = eris.New("postcodes: postcode not found")

// Result is a resolved postcode.
type Result struct {
	Postcode  string  `json:"postcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type lookupResponse struct {
	Status int     `json:"status"`
	Error  string  `json:"error,omitempty"`
	Result *Result `json:"result"`
}

// Client looks up postcodes.
type Client interface {
	Lookup(ctx context.Context, postcode string) (*Result, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

type client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a postcodes.io client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Normalize upper-cases a postcode and strips all whitespace, the form
// postcodes.io accepts in a path segment.
func Normalize(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), ""))
}

func (c *client) Lookup(ctx context.Context, postcode string) (*Result, error) {
	pc := Normalize(postcode)
	if pc == "" {
		return nil, eris.New("postcodes: postcode is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/postcodes/"+url.PathEscape(pc), nil)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, eris.Wrapf(ErrNotFound, "postcodes: %s", pc)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("postcodes: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: read body")
	}

	var out lookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "postcodes: parse response")
	}
	if out.Result == nil {
		return nil, eris.Wrapf(ErrNotFound, "postcodes: %s has no result", pc)
	}

	return out.Result, nil
}
