package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/leadfinder/pkg/google"
)

// fakeGoogle answers nearby searches from a function and records requests.
type fakeGoogle struct {
	mu       sync.Mutex
	requests []google.NearbySearchRequest
	search   func(req google.NearbySearchRequest) (*google.NearbySearchResponse, error)
}

func (f *fakeGoogle) NearbySearch(_ context.Context, req google.NearbySearchRequest) (*google.NearbySearchResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.search(req)
}

func (f *fakeGoogle) Details(_ context.Context, _ string) (*google.PlaceDetails, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeGoogle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func places(prefix string, n int) []google.Place {
	out := make([]google.Place, n)
	for i := range out {
		out[i] = google.Place{
			PlaceID:          fmt.Sprintf("%s-%d", prefix, i),
			Name:             fmt.Sprintf("%s business %d", prefix, i),
			BusinessStatus:   google.StatusOperational,
			UserRatingsTotal: i,
		}
	}
	return out
}
