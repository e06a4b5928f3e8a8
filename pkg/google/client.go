// Package google wraps the Google Places nearby-search and details endpoints.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// detailFields is the field mask requested from the details endpoint.
const detailFields = "place_id,name,formatted_phone_number,website,url"

// ErrMalformed is returned when a response decodes but lacks required fields.
var ErrMalformed = eris.New("google: malformed response")

// Client performs Google Places API operations.
type Client interface {
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
	Details(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// NearbySearchRequest describes one nearby-search call. When PageToken is
// set the other fields are ignored, as the API requires.
type NearbySearchRequest struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
	Keyword      string
	PageToken    string
}

// NearbySearchResponse is one page of nearby-search results.
type NearbySearchResponse struct {
	Results       []Place `json:"results"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	Status        string  `json:"status"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Place is a nearby-search result. Optional attributes are pointers or
// slices so absence is explicit.
type Place struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	BusinessStatus   string        `json:"business_status,omitempty"`
	Rating           *float64      `json:"rating,omitempty"`
	UserRatingsTotal int           `json:"user_ratings_total"`
	Photos           []Photo       `json:"photos,omitempty"`
	OpeningHours     *OpeningHours `json:"opening_hours,omitempty"`
	Vicinity         string        `json:"vicinity,omitempty"`
	Types            []string      `json:"types,omitempty"`
	Geometry         *Geometry     `json:"geometry,omitempty"`
}

// Photo is a photo reference attached to a place.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Height         int    `json:"height,omitempty"`
	Width          int    `json:"width,omitempty"`
}

// OpeningHours holds the open-now flag when the place publishes hours.
type OpeningHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}

// Geometry holds the place location.
type Geometry struct {
	Location LatLng `json:"location"`
}

// LatLng is a coordinate pair as returned by the API.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Business status values reported by the API.
const (
	StatusOperational       = "OPERATIONAL"
	StatusClosedTemporarily = "CLOSED_TEMPORARILY"
	StatusClosedPermanently = "CLOSED_PERMANENTLY"
)

// PlaceDetails is the subset of the details response used for enrichment.
type PlaceDetails struct {
	PlaceID              string `json:"place_id"`
	Name                 string `json:"name"`
	FormattedPhoneNumber string `json:"formatted_phone_number,omitempty"`
	Website              string `json:"website,omitempty"`
	URL                  string `json:"url,omitempty"`
}

type detailsResponse struct {
	Result       *PlaceDetails `json:"result"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// StatusError reports a non-success HTTP status or API status string.
type StatusError struct {
	StatusCode int
	APIStatus  string
	Body       string
}

func (e *StatusError) Error() string {
	if e.APIStatus != "" {
		return fmt.Sprintf("google: api status %s: %s", e.APIStatus, e.Body)
	}
	return fmt.Sprintf("google: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero disables limiting.
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

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("location", fmt.Sprintf("%.7f,%.7f", req.Lat, req.Lng))
		params.Set("radius", strconv.Itoa(req.RadiusMeters))
		params.Set("keyword", req.Keyword)
	}

	body, err := c.get(ctx, "/nearbysearch/json", params)
	if err != nil {
		return nil, err
	}

	var result NearbySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(ErrMalformed, "google: unmarshal nearby search: "+err.Error())
	}
	if result.Status != "" && result.Status != "OK" && result.Status != "ZERO_RESULTS" {
		return nil, &StatusError{StatusCode: http.StatusOK, APIStatus: result.Status, Body: result.ErrorMessage}
	}

	return &result, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if placeID == "" {
		return nil, eris.New("google: place id is required")
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailFields)
	params.Set("key", c.apiKey)

	body, err := c.get(ctx, "/details/json", params)
	if err != nil {
		return nil, err
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(ErrMalformed, "google: unmarshal details: "+err.Error())
	}
	if resp.Status != "" && resp.Status != "OK" {
		return nil, &StatusError{StatusCode: http.StatusOK, APIStatus: resp.Status, Body: resp.ErrorMessage}
	}
	if resp.Result == nil {
		return nil, eris.Wrapf(ErrMalformed, "google: details for %s missing result", placeID)
	}
	if resp.Result.PlaceID == "" {
		resp.Result.PlaceID = placeID
	}

	return resp.Result, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "google: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
