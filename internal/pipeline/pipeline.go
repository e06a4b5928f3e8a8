// Package pipeline runs a lead-finding pass end to end: locate the search
// centre, discover candidates, enrich them and publish the lead table.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/export"
	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/internal/store"
	"github.com/sells-group/leadfinder/pkg/postcodes"
)

// Enricher turns candidates into leads committed to state.
type Enricher interface {
	Run(ctx context.Context, candidates []discovery.Candidate, state *enrich.State) (*enrich.Stats, error)
}

// Options tunes a Pipeline.
type Options struct {
	Discovery    discovery.Config
	SnapshotPath string
	SeedEmails   []string
	SeedMobiles  []string
}

// Summary reports what a pass produced.
type Summary struct {
	RunID      string            `json:"run_id,omitempty"`
	Center     geo.Point         `json:"center"`
	Candidates int               `json:"candidates"`
	Leads      int               `json:"leads"`
	Discovery  *discovery.Result `json:"-"`
	Enrich     *enrich.Stats     `json:"enrich,omitempty"`
	Phases     []Phase           `json:"phases"`
	LeadList   []enrich.Lead     `json:"-"`
}

// Phase records the outcome of one pipeline phase.
type Phase struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Pipeline wires the lead-finding components together. The store and the
// postcode client are optional.
type Pipeline struct {
	postcodes postcodes.Client
	fetcher   *discovery.Fetcher
	enricher  Enricher
	output    export.Writer
	store     store.Store
	opts      Options
}

// New creates a Pipeline. postcodeClient and st may be nil.
func New(postcodeClient postcodes.Client, fetcher *discovery.Fetcher, enricher Enricher, output export.Writer, st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		postcodes: postcodeClient,
		fetcher:   fetcher,
		enricher:  enricher,
		output:    output,
		store:     st,
		opts:      opts,
	}
}

// Locate resolves a UK postcode to its coordinates, rounded to 7 decimal
// places.
func (p *Pipeline) Locate(ctx context.Context, postcode string) (geo.Point, error) {
	if p.postcodes == nil {
		return geo.Point{}, eris.New("pipeline: no postcode client configured")
	}
	res, err := p.postcodes.Lookup(ctx, postcode)
	if err != nil {
		return geo.Point{}, eris.Wrapf(err, "pipeline: locate %s", postcode)
	}
	return geo.Point{Lat: geo.Round7(res.Latitude), Lng: geo.Round7(res.Longitude)}, nil
}

// Find runs a full pass for spec. When spec.Postcode is set it takes
// precedence over spec.Center. With a store configured the pass is recorded
// as a run, which is failed if any phase errors.
func (p *Pipeline) Find(ctx context.Context, spec store.RunSpec) (*Summary, error) {
	sum := &Summary{}
	log := zap.L().With(zap.String("component", "pipeline"))

	if spec.Postcode != "" {
		var center geo.Point
		err := p.track(sum, "locate", func() (err error) {
			center, err = p.Locate(ctx, spec.Postcode)
			return err
		})
		if err != nil {
			return sum, err
		}
		spec.Center = center
	}
	sum.Center = spec.Center
	log = log.With(zap.Stringer("center", spec.Center), zap.Int("radius_meters", spec.RadiusMeters))

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, spec)
		if err != nil {
			return sum, eris.Wrap(err, "pipeline: create run")
		}
		sum.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}
	log.Info("pipeline: starting", zap.Strings("keywords", spec.Keywords))

	if err := p.find(ctx, spec, sum); err != nil {
		p.failRun(sum.RunID, err)
		return sum, err
	}

	if p.store != nil {
		if err := p.store.CompleteRun(ctx, sum.RunID, sum.Candidates, sum.Leads); err != nil {
			return sum, eris.Wrap(err, "pipeline: complete run")
		}
	}
	log.Info("pipeline: complete",
		zap.Int("candidates", sum.Candidates),
		zap.Int("leads", sum.Leads),
	)
	return sum, nil
}

func (p *Pipeline) find(ctx context.Context, spec store.RunSpec, sum *Summary) error {
	var res *discovery.Result
	err := p.track(sum, "discover", func() (err error) {
		res, err = p.Discover(ctx, spec, sum.RunID)
		return err
	})
	if err != nil {
		return err
	}
	sum.Discovery = res
	sum.Candidates = res.Set.Len()

	return p.enrichInto(ctx, res.Set.Candidates(), sum)
}

// Discover runs the discovery phase for spec and writes the candidate
// snapshot to the configured file and, when runID is set, to the store.
func (p *Pipeline) Discover(ctx context.Context, spec store.RunSpec, runID string) (*discovery.Result, error) {
	var writers []discovery.SnapshotWriter
	if p.opts.SnapshotPath != "" {
		writers = append(writers, discovery.FileSnapshot{Path: p.opts.SnapshotPath})
	}
	if p.store != nil && runID != "" {
		writers = append(writers, store.Snapshot(p.store, runID))
	}
	var snapshot discovery.SnapshotWriter
	if len(writers) > 0 {
		snapshot = discovery.MultiSnapshot(writers...)
	}

	agg := discovery.NewAggregator(p.fetcher, p.opts.Discovery, snapshot)
	return agg.Discover(ctx, discovery.Request{
		Center:       spec.Center,
		RadiusMeters: spec.RadiusMeters,
		Keywords:     spec.Keywords,
	})
}

// Enrich runs the enrichment and publish phases over candidates, such as
// those read back from a snapshot file. No run is recorded.
func (p *Pipeline) Enrich(ctx context.Context, candidates []discovery.Candidate) (*Summary, error) {
	sum := &Summary{Candidates: len(candidates)}
	if err := p.enrichInto(ctx, candidates, sum); err != nil {
		return sum, err
	}
	p.logSummary(sum)
	return sum, nil
}

// EnrichRun re-enriches the candidates stored for runID and replaces its
// leads.
func (p *Pipeline) EnrichRun(ctx context.Context, runID string) (*Summary, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: enrich run requires a store")
	}
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get run %s", runID)
	}
	candidates, err := p.store.ListCandidates(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list candidates %s", runID)
	}

	sum := &Summary{RunID: runID, Center: run.Center, Candidates: len(candidates)}
	if err := p.enrichInto(ctx, candidates, sum); err != nil {
		p.failRun(runID, err)
		return sum, err
	}
	if err := p.store.CompleteRun(ctx, runID, sum.Candidates, sum.Leads); err != nil {
		return sum, eris.Wrap(err, "pipeline: complete run")
	}
	p.logSummary(sum)
	return sum, nil
}

func (p *Pipeline) enrichInto(ctx context.Context, candidates []discovery.Candidate, sum *Summary) error {
	state := enrich.NewState()
	state.Seed(p.opts.SeedEmails, p.opts.SeedMobiles)

	err := p.track(sum, "enrich", func() (err error) {
		sum.Enrich, err = p.enricher.Run(ctx, candidates, state)
		return err
	})
	if err != nil {
		return err
	}

	leads := state.Leads()
	sum.Leads = len(leads)
	sum.LeadList = leads

	return p.track(sum, "publish", func() error {
		return p.publish(ctx, sum.RunID, leads)
	})
}

// publish stores the leads, when a run is recorded, before writing them to
// the output sinks.
func (p *Pipeline) publish(ctx context.Context, runID string, leads []enrich.Lead) error {
	if p.store != nil && runID != "" {
		if err := p.store.SaveLeads(ctx, runID, leads); err != nil {
			return eris.Wrap(err, "pipeline: save leads")
		}
	}
	if p.output != nil {
		if err := p.output.Write(ctx, leads); err != nil {
			return eris.Wrap(err, "pipeline: write output")
		}
	}
	return nil
}

// track times fn as a named phase and records it on sum.
func (p *Pipeline) track(sum *Summary, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	phase := Phase{Name: name, Duration: time.Since(start).Milliseconds()}

	log := zap.L().With(zap.String("phase", name), zap.Int64("duration_ms", phase.Duration))
	if err != nil {
		phase.Error = err.Error()
		log.Error("pipeline: phase failed", zap.Error(err))
	} else {
		log.Info("pipeline: phase complete")
	}
	sum.Phases = append(sum.Phases, phase)
	return err
}

// failRun marks a run failed. It uses a fresh context so a canceled pass is
// still recorded.
func (p *Pipeline) failRun(runID string, cause error) {
	if p.store == nil || runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to mark run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) logSummary(sum *Summary) {
	zap.L().Info("pipeline: complete",
		zap.String("run_id", sum.RunID),
		zap.Int("candidates", sum.Candidates),
		zap.Int("leads", sum.Leads),
	)
}
