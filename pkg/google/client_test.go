package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNearbySearch_FirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/nearbysearch/json", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "51.5000000,-0.1200000", q.Get("location"))
		assert.Equal(t, "8090", q.Get("radius"))
		assert.Equal(t, "cafe|coffee", q.Get("keyword"))
		assert.Empty(t, q.Get("pagetoken"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NearbySearchResponse{
			Status: "OK",
			Results: []Place{
				{
					PlaceID:          "ChIJ-cafe1",
					Name:             "Bean There",
					BusinessStatus:   StatusOperational,
					Rating:           ptr(4.6),
					UserRatingsTotal: 87,
					Photos:           []Photo{{PhotoReference: "ref-1"}},
				},
			},
			NextPageToken: "token-2",
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(context.Background(), NearbySearchRequest{
		Lat: 51.5, Lng: -0.12, RadiusMeters: 8090, Keyword: "cafe|coffee",
	})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ChIJ-cafe1", resp.Results[0].PlaceID)
	assert.Equal(t, "Bean There", resp.Results[0].Name)
	require.NotNil(t, resp.Results[0].Rating)
	assert.InDelta(t, 4.6, *resp.Results[0].Rating, 0.001)
	assert.Nil(t, resp.Results[0].OpeningHours)
	assert.Equal(t, "token-2", resp.NextPageToken)
}

func TestNearbySearch_PageTokenOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "token-2", q.Get("pagetoken"))
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Empty(t, q.Get("location"))
		assert.Empty(t, q.Get("keyword"))

		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p2","name":"Second","user_ratings_total":3}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(context.Background(), NearbySearchRequest{PageToken: "token-2", Keyword: "ignored"})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.NextPageToken)
}

func TestNearbySearch_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(context.Background(), NearbySearchRequest{Lat: 1, Lng: 1, RadiusMeters: 10, Keyword: "x"})

	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestNearbySearch_APIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(context.Background(), NearbySearchRequest{Keyword: "x"})

	assert.Nil(t, resp)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "REQUEST_DENIED", se.APIStatus)
	assert.Contains(t, err.Error(), "invalid")
}

func TestNearbySearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "forbidden"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(context.Background(), NearbySearchRequest{Keyword: "x"})

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
}

func TestNearbySearch_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	_, err := client.NearbySearch(context.Background(), NearbySearchRequest{Keyword: "x"})

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformed))
}

func TestNearbySearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.NearbySearch(ctx, NearbySearchRequest{Keyword: "x"})

	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestDetails_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ChIJ-cafe1", q.Get("place_id"))
		assert.Contains(t, q.Get("fields"), "formatted_phone_number")
		assert.Contains(t, q.Get("fields"), "website")

		_, _ = w.Write([]byte(`{"status":"OK","result":{
			"place_id":"ChIJ-cafe1",
			"name":"Bean There",
			"formatted_phone_number":"07911 123456",
			"website":"https://beanthere.co.uk/",
			"url":"https://maps.google.com/?cid=1"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	d, err := client.Details(context.Background(), "ChIJ-cafe1")

	require.NoError(t, err)
	assert.Equal(t, "07911 123456", d.FormattedPhoneNumber)
	assert.Equal(t, "https://beanthere.co.uk/", d.Website)
	assert.Equal(t, "https://maps.google.com/?cid=1", d.URL)
}

func TestDetails_MissingResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Details(context.Background(), "p1")

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformed))
}

func TestDetails_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Details(context.Background(), "gone")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestDetails_EmptyID(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Details(context.Background(), "")
	assert.Error(t, err)
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("k", WithRateLimit(5)).(*httpClient)
	require.NotNil(t, c.limiter)

	c = NewClient("k", WithRateLimit(0)).(*httpClient)
	assert.Nil(t, c.limiter)
}
