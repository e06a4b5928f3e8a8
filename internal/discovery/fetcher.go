package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/pkg/google"
)

const (
	// maxFollowUps caps page-token requests after the first query. The
	// directory returns at most 60 results over three pages.
	maxFollowUps = 2
	// DefaultSettleDelay is how long a fresh page token takes to become valid.
	DefaultSettleDelay = 2 * time.Second
)

// Query is one nearby search: a keyword expression around a point.
type Query struct {
	Point        geo.Point
	RadiusMeters int
	Keyword      string
}

// Fetcher runs a nearby search and follows its page tokens.
type Fetcher struct {
	client google.Client
	settle time.Duration
}

// NewFetcher creates a Fetcher. A negative settle delay is treated as zero.
func NewFetcher(client google.Client, settle time.Duration) *Fetcher {
	if settle < 0 {
		settle = 0
	}
	return &Fetcher{client: client, settle: settle}
}

// Fetch returns every result for q across the first page and up to two
// follow-up pages. Any request error aborts the fetch; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]google.Place, error) {
	log := zap.L().With(zap.String("keyword", q.Keyword), zap.Stringer("point", q.Point))

	resp, err := f.client.NearbySearch(ctx, google.NearbySearchRequest{
		Lat:          q.Point.Lat,
		Lng:          q.Point.Lng,
		RadiusMeters: q.RadiusMeters,
		Keyword:      q.Keyword,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: nearby search")
	}

	results := append([]google.Place(nil), resp.Results...)
	log.Debug("nearby search page", zap.Int("page", 0), zap.Int("results", len(resp.Results)))

	token := resp.NextPageToken
	for page := 1; page <= maxFollowUps && token != ""; page++ {
		if err := sleep(ctx, f.settle); err != nil {
			return nil, eris.Wrap(err, "discovery: settle delay")
		}

		resp, err = f.client.NearbySearch(ctx, google.NearbySearchRequest{PageToken: token})
		if err != nil {
			return nil, eris.Wrapf(err, "discovery: nearby search page %d", page)
		}
		results = append(results, resp.Results...)
		log.Debug("nearby search page", zap.Int("page", page), zap.Int("results", len(resp.Results)))

		token = resp.NextPageToken
	}

	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
