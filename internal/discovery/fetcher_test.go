package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/pkg/google"
	"github.com/sells-group/leadfinder/pkg/google/mocks"
)

func TestFetcher_TwoPages(t *testing.T) {
	gClient := mocks.NewMockClient(t)

	first := mock.MatchedBy(func(r google.NearbySearchRequest) bool {
		return r.PageToken == "" && r.Keyword == "cafe" && r.RadiusMeters == 8090
	})
	gClient.On("NearbySearch", mock.Anything, first).
		Return(&google.NearbySearchResponse{Status: "OK", Results: places("p1", 25), NextPageToken: "tok"}, nil).Once()
	gClient.On("NearbySearch", mock.Anything, google.NearbySearchRequest{PageToken: "tok"}).
		Return(&google.NearbySearchResponse{Status: "OK", Results: places("p2", 10)}, nil).Once()

	f := NewFetcher(gClient, 0)
	got, err := f.Fetch(context.Background(), Query{
		Point:        geo.Point{Lat: 51.5, Lng: -0.12},
		RadiusMeters: geo.ExpandedRadiusMeters(5000),
		Keyword:      "cafe",
	})

	require.NoError(t, err)
	assert.Len(t, got, 35)
	assert.Equal(t, "p1-0", got[0].PlaceID)
	assert.Equal(t, "p2-9", got[34].PlaceID)
	gClient.AssertNumberOfCalls(t, "NearbySearch", 2)
}

func TestFetcher_CapsAtThreeRequests(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Status: "OK", Results: places("x", 20), NextPageToken: "always"}, nil
	}}

	f := NewFetcher(fake, 0)
	got, err := f.Fetch(context.Background(), Query{Point: geo.Point{Lat: 1, Lng: 1}, RadiusMeters: 100, Keyword: "k"})

	require.NoError(t, err)
	assert.Len(t, got, 60)
	assert.Equal(t, 3, fake.calls())
}

func TestFetcher_NoToken(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Status: "ZERO_RESULTS"}, nil
	}}

	got, err := NewFetcher(fake, 0).Fetch(context.Background(), Query{Keyword: "k", RadiusMeters: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, fake.calls())
}

func TestFetcher_FollowUpFailureAborts(t *testing.T) {
	fake := &fakeGoogle{search: func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		if req.PageToken != "" {
			return nil, errors.New("INVALID_REQUEST")
		}
		return &google.NearbySearchResponse{Results: places("a", 20), NextPageToken: "t"}, nil
	}}

	got, err := NewFetcher(fake, 0).Fetch(context.Background(), Query{Keyword: "k", RadiusMeters: 10})
	assert.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 2, fake.calls())
}

func TestFetcher_SettleDelayHonoursContext(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Results: places("a", 1), NextPageToken: "t"}, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewFetcher(fake, time.Hour).Fetch(ctx, Query{Keyword: "k", RadiusMeters: 10})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, fake.calls())
}

func TestFetcher_WaitsSettleDelay(t *testing.T) {
	fake := &fakeGoogle{search: func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		if req.PageToken == "" {
			return &google.NearbySearchResponse{Results: places("a", 1), NextPageToken: "t"}, nil
		}
		return &google.NearbySearchResponse{Results: places("b", 1)}, nil
	}}

	start := time.Now()
	got, err := NewFetcher(fake, 30*time.Millisecond).Fetch(context.Background(), Query{Keyword: "k", RadiusMeters: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
