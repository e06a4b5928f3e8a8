package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/pkg/google"
)

func TestTasks_KeywordMajor(t *testing.T) {
	req := Request{Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 5000, Keywords: []string{"cafe", "bakery"}}
	queries, err := Tasks(req)
	require.NoError(t, err)

	require.Len(t, queries, 2*geo.GridSize)
	for i, q := range queries {
		assert.Equal(t, 8090, q.RadiusMeters)
		if i < geo.GridSize {
			assert.Equal(t, "cafe", q.Keyword)
		} else {
			assert.Equal(t, "bakery", q.Keyword)
		}
	}
	assert.Equal(t, req.Center, queries[4].Point)
}

func TestAggregator_DedupFirstWriterWins(t *testing.T) {
	grid, err := geo.NewSampleGrid(geo.Point{Lat: 51.5, Lng: -0.12}, 5000)
	require.NoError(t, err)

	fake := &fakeGoogle{search: func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		switch {
		case req.Lat == grid[0].Lat && req.Lng == grid[0].Lng:
			return &google.NearbySearchResponse{Results: []google.Place{{PlaceID: "X1", Name: "first"}}}, nil
		case req.Lat == grid[1].Lat && req.Lng == grid[1].Lng:
			return &google.NearbySearchResponse{Results: []google.Place{{PlaceID: "X1", Name: "second"}, {PlaceID: "Y2", Name: "other"}}}, nil
		}
		return &google.NearbySearchResponse{}, nil
	}}

	agg := NewAggregator(NewFetcher(fake, 0), Config{Concurrency: 4}, nil)
	res, err := agg.Discover(context.Background(), Request{
		Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 5000, Keywords: []string{"cafe"},
	})
	require.NoError(t, err)

	assert.Equal(t, 9, res.Tasks)
	assert.Equal(t, 3, res.Raw)
	assert.Equal(t, 2, res.Set.Len())

	x1, ok := res.Set.Get("X1")
	require.True(t, ok)
	assert.Equal(t, "first", x1.Name)
	assert.Equal(t, 9, fake.calls())
}

func TestAggregator_DuplicatesAcrossKeywords(t *testing.T) {
	fake := &fakeGoogle{search: func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Results: []google.Place{{PlaceID: "same", Name: req.Keyword}}}, nil
	}}

	agg := NewAggregator(NewFetcher(fake, 0), Config{}, nil)
	res, err := agg.Discover(context.Background(), Request{
		Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 1000, Keywords: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	assert.Equal(t, 27, res.Tasks)
	assert.Equal(t, 1, res.Set.Len())
	c, _ := res.Set.Get("same")
	assert.Equal(t, "a", c.Name)
}

func TestAggregator_FailedTaskContributesNothing(t *testing.T) {
	var n atomic.Int32
	fake := &fakeGoogle{search: func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		if n.Add(1) == 1 {
			return nil, errors.New("boom")
		}
		return &google.NearbySearchResponse{Results: []google.Place{{PlaceID: req.Keyword + "-ok"}}}, nil
	}}

	agg := NewAggregator(NewFetcher(fake, 0), Config{Concurrency: 1}, nil)
	res, err := agg.Discover(context.Background(), Request{
		Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 1000, Keywords: []string{"k"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.FailedTasks)
	assert.Equal(t, 8, res.Raw)
	assert.Equal(t, 1, res.Set.Len())
}

func TestAggregator_WritesSnapshot(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Results: places("s", 3)}, nil
	}}

	var written []Candidate
	snap := SnapshotFunc(func(_ context.Context, cands []Candidate) error {
		written = cands
		return nil
	})

	agg := NewAggregator(NewFetcher(fake, 0), Config{}, snap)
	res, err := agg.Discover(context.Background(), Request{
		Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 1000, Keywords: []string{"k"},
	})
	require.NoError(t, err)
	assert.Equal(t, res.Set.Candidates(), written)
	assert.Len(t, written, 3)
}

func TestAggregator_SnapshotErrorNotFatal(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{Results: places("s", 1)}, nil
	}}
	snap := SnapshotFunc(func(context.Context, []Candidate) error { return errors.New("disk full") })

	agg := NewAggregator(NewFetcher(fake, 0), Config{}, snap)
	res, err := agg.Discover(context.Background(), Request{
		Center: geo.Point{Lat: 51.5, Lng: -0.12}, RadiusMeters: 1000, Keywords: []string{"k"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Set.Len())
}

func TestAggregator_RequiresKeywords(t *testing.T) {
	agg := NewAggregator(NewFetcher(&fakeGoogle{}, 0), Config{}, nil)
	_, err := agg.Discover(context.Background(), Request{Center: geo.Point{Lat: 51.5}, RadiusMeters: 1000})
	assert.Error(t, err)
}

func TestAggregator_InvalidRadius(t *testing.T) {
	agg := NewAggregator(NewFetcher(&fakeGoogle{}, 0), Config{}, nil)
	_, err := agg.Discover(context.Background(), Request{Center: geo.Point{Lat: 51.5}, Keywords: []string{"k"}})
	assert.Error(t, err)
}

func TestAggregator_Canceled(t *testing.T) {
	fake := &fakeGoogle{search: func(_ google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
		return &google.NearbySearchResponse{}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewAggregator(NewFetcher(fake, 0), Config{}, nil)
	_, err := agg.Discover(ctx, Request{Center: geo.Point{Lat: 51.5}, RadiusMeters: 1000, Keywords: []string{"k"}})
	assert.Error(t, err)
}

func TestCandidate_Flags(t *testing.T) {
	rating := 4.2
	c := Candidate{Place: google.Place{
		PlaceID:        "p",
		BusinessStatus: google.StatusClosedTemporarily,
		Rating:         &rating,
		OpeningHours:   &google.OpeningHours{},
	}}
	assert.Equal(t, "p", c.ID())
	assert.True(t, c.Closed())
	assert.True(t, c.HasRating())
	assert.False(t, c.HasPhotos())
	assert.True(t, c.HasOpeningHours())

	zero := 0.0
	assert.False(t, Candidate{Place: google.Place{Rating: &zero}}.HasRating())
}

func TestSet_IgnoresEmptyID(t *testing.T) {
	s := NewSet()
	assert.False(t, s.Add(Candidate{}))
	assert.True(t, s.Add(Candidate{Place: google.Place{PlaceID: "a"}}))
	assert.False(t, s.Add(Candidate{Place: google.Place{PlaceID: "a", Name: "dup"}}))
	assert.Equal(t, 1, s.Len())
}
