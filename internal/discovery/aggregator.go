package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/pkg/google"
)

const (
	// DefaultStagger spaces out fetch task starts.
	DefaultStagger = 250 * time.Millisecond
	// DefaultConcurrency bounds the number of in-flight fetch tasks.
	DefaultConcurrency = 8
)

// Config tunes the aggregator.
type Config struct {
	Concurrency int
	Stagger     time.Duration
}

// Request describes one discovery pass.
type Request struct {
	Center       geo.Point
	RadiusMeters int
	Keywords     []string
}

// Result summarises a discovery pass.
type Result struct {
	Set         *Set
	Tasks       int
	FailedTasks int
	Raw         int
}

// Aggregator fans out one fetch per (keyword, grid point) and merges the
// results into a deduplicated Set.
type Aggregator struct {
	fetcher  *Fetcher
	cfg      Config
	snapshot SnapshotWriter
}

// NewAggregator creates an Aggregator. snapshot may be nil.
func NewAggregator(fetcher *Fetcher, cfg Config, snapshot SnapshotWriter) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	}
	return &Aggregator{fetcher: fetcher, cfg: cfg, snapshot: snapshot}
}

// Tasks expands a request into its fetch queries, keyword-major. Each
// query uses the expanded radius so the nine cells cover the circle.
func Tasks(req Request) ([]Query, error) {
	grid, err := geo.NewSampleGrid(req.Center, req.RadiusMeters)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: sample grid")
	}
	radius := geo.ExpandedRadiusMeters(req.RadiusMeters)

	queries := make([]Query, 0, len(req.Keywords)*geo.GridSize)
	for _, kw := range req.Keywords {
		for _, p := range grid {
			queries = append(queries, Query{Point: p, RadiusMeters: radius, Keyword: kw})
		}
	}
	return queries, nil
}

// Discover runs every fetch task, merges their results first-writer-wins
// in task order and writes the snapshot. A failed task contributes nothing.
func (a *Aggregator) Discover(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("component", "discovery"))

	if len(req.Keywords) == 0 {
		return nil, eris.New("discovery: at least one keyword is required")
	}
	queries, err := Tasks(req)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if a.cfg.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(a.cfg.Stagger), 1)
	}

	results := make([][]google.Place, len(queries))
	failed := make([]bool, len(queries))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	for i, q := range queries {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			places, err := a.fetcher.Fetch(ctx, q)
			if err != nil {
				failed[i] = true
				log.Warn("fetch task failed",
					zap.String("keyword", q.Keyword),
					zap.Stringer("point", q.Point),
					zap.Error(err),
				)
				return nil
			}
			results[i] = places
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "discovery: canceled")
	}

	res := &Result{Set: NewSet(), Tasks: len(queries)}
	for i, places := range results {
		if failed[i] {
			res.FailedTasks++
			continue
		}
		res.Raw += len(places)
		for _, p := range places {
			res.Set.Add(Candidate{Place: p})
		}
	}

	log.Info("discovery complete",
		zap.Int("tasks", res.Tasks),
		zap.Int("failed_tasks", res.FailedTasks),
		zap.Int("raw_results", res.Raw),
		zap.Int("unique", res.Set.Len()),
	)

	if a.snapshot != nil {
		if err := a.snapshot.WriteSnapshot(ctx, res.Set.Candidates()); err != nil {
			log.Error("write snapshot failed", zap.Error(err))
		}
	}

	return res, nil
}
