// Package companieshouse is a minimal client for the Companies House public
// data API: company search and officer listings.
package companieshouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.company-information.service.gov.uk"
	searchPageSize = 100
)

// Client performs Companies House API operations.
type Client interface {
	SearchCompanies(ctx context.Context, query string) ([]CompanyItem, error)
	Officers(ctx context.Context, companyNumber string) ([]Officer, error)
}

// CompanyItem is one company search hit.
type CompanyItem struct {
	CompanyNumber  string `json:"company_number"`
	Title          string `json:"title"`
	CompanyStatus  string `json:"company_status"`
	CompanyType    string `json:"company_type,omitempty"`
	DateOfCreation string `json:"date_of_creation,omitempty"`
}

// Active reports whether the company is trading.
func (c CompanyItem) Active() bool {
	return c.CompanyStatus == "active"
}

// Officer is one entry in a company's officer list.
type Officer struct {
	Name        string       `json:"name"`
	OfficerRole string       `json:"officer_role"`
	AppointedOn string       `json:"appointed_on,omitempty"`
	ResignedOn  string       `json:"resigned_on,omitempty"`
	DateOfBirth *DateOfBirth `json:"date_of_birth,omitempty"`
}

// DateOfBirth is the partial birth date Companies House publishes.
type DateOfBirth struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year"`
}

type searchResponse struct {
	Items []CompanyItem `json:"items"`
}

type officersResponse struct {
	Items []Officer `json:"items"`
}

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("companieshouse: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outbound requests per second. The public API allows
// 600 requests per five minutes.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Companies House client. The API key is sent as the
// basic-auth username.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchCompanies(ctx context.Context, query string) ([]CompanyItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.New("companieshouse: query is required")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("items_per_page", fmt.Sprint(searchPageSize))

	var out searchResponse
	if err := c.get(ctx, "/search/companies?"+params.Encode(), &out); err != nil {
		return nil, eris.Wrapf(err, "companieshouse: search %q", query)
	}
	return out.Items, nil
}

func (c *httpClient) Officers(ctx context.Context, companyNumber string) ([]Officer, error) {
	if companyNumber == "" {
		return nil, eris.New("companieshouse: company number is required")
	}

	var out officersResponse
	if err := c.get(ctx, "/company/"+url.PathEscape(companyNumber)+"/officers", &out); err != nil {
		return nil, eris.Wrapf(err, "companieshouse: officers %s", companyNumber)
	}
	return out.Items, nil
}

func (c *httpClient) get(ctx context.Context, path string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
