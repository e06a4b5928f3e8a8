package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/export"
	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/internal/pipeline"
	"github.com/sells-group/leadfinder/internal/resolve"
	"github.com/sells-group/leadfinder/internal/scrape"
	"github.com/sells-group/leadfinder/internal/store"
	"github.com/sells-group/leadfinder/pkg/companieshouse"
	"github.com/sells-group/leadfinder/pkg/google"
	"github.com/sells-group/leadfinder/pkg/notion"
	"github.com/sells-group/leadfinder/pkg/postcodes"
)

// initStore opens the configured run store, or returns nil when none is
// configured.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newPlacesClient() google.Client {
	return google.NewClient(cfg.Google.Key,
		google.WithBaseURL(cfg.Google.BaseURL),
		google.WithRateLimit(cfg.Google.RateLimit),
	)
}

func newPostcodesClient() postcodes.Client {
	return postcodes.NewClient(postcodes.WithBaseURL(cfg.Postcodes.BaseURL))
}

func newOrchestrator(places google.Client) *enrich.Orchestrator {
	registry := companieshouse.NewClient(cfg.CompaniesHouse.Token,
		companieshouse.WithBaseURL(cfg.CompaniesHouse.BaseURL),
		companieshouse.WithRateLimit(cfg.CompaniesHouse.RateLimit),
	)
	matcher := resolve.NewMatcher(registry, resolve.Thresholds{
		NameLengthRatio: cfg.Enrich.NameLengthRatio,
		WordOverlap:     cfg.Enrich.WordOverlap,
	})
	extractor := scrape.NewContactExtractor(
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
		scrape.WithTimeout(cfg.Scrape.Timeout()),
		scrape.WithMaxDepth(cfg.Scrape.MaxDepth),
		scrape.WithMaxContactPages(cfg.Scrape.MaxContactPages),
	)
	return enrich.NewOrchestrator(places, matcher, extractor, enrich.Config{
		MaxRatings: cfg.Enrich.MaxRatings,
		Blocklist:  blocklist(cfg.Scrape),
		Workers:    cfg.Enrich.Workers,
		Stagger:    time.Duration(cfg.Enrich.StaggerMs) * time.Millisecond,
	})
}

// blocklist returns the configured website blocklist, defaulting to the
// built-in one.
func blocklist(c config.ScrapeConfig) []string {
	if len(c.Blocklist) == 0 {
		return scrape.DefaultBlocklist
	}
	return c.Blocklist
}

// newOutput builds the lead table writer plus the Notion sink when a Notion
// token is configured.
func newOutput() (export.Writer, error) {
	file, err := export.New(cfg.Output.Format, cfg.Output.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Notion.Token == "" {
		return file, nil
	}
	return export.Multi{file, export.NewNotionWriter(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB)}, nil
}

// pipelineEnv holds the pipeline and the resources it owns.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode and builds the pipeline.
// Enrichment and output are only wired for modes that enrich.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	places := newPlacesClient()
	fetcher := discovery.NewFetcher(places, time.Duration(cfg.Discovery.SettleMs)*time.Millisecond)

	var (
		enricher pipeline.Enricher
		output   export.Writer
	)
	if mode != config.ModeDiscover {
		enricher = newOrchestrator(places)
		if output, err = newOutput(); err != nil {
			if st != nil {
				_ = st.Close()
			}
			return nil, err
		}
	}

	p := pipeline.New(newPostcodesClient(), fetcher, enricher, output, st, pipeline.Options{
		Discovery: discovery.Config{
			Concurrency: cfg.Discovery.Concurrency,
			Stagger:     time.Duration(cfg.Discovery.StaggerMs) * time.Millisecond,
		},
		SnapshotPath: cfg.Discovery.SnapshotPath,
		SeedEmails:   cfg.Enrich.SeedEmails,
		SeedMobiles:  cfg.Enrich.SeedMobiles,
	})
	return &pipelineEnv{Pipeline: p, Store: st}, nil
}

// keywords resolves the keyword list: explicit config keywords, then a
// keyword file, then the built-in presets.
func keywords() ([]string, error) {
	if len(cfg.Discovery.Keywords) > 0 {
		return cfg.Discovery.Keywords, nil
	}
	if cfg.Discovery.KeywordsFile != "" {
		return discovery.LoadKeywords(cfg.Discovery.KeywordsFile)
	}
	return discovery.DefaultKeywords, nil
}

// addSearchFlags registers the flags that locate a search.
func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("postcode", "", "UK postcode at the centre of the search")
	cmd.Flags().Float64("lat", 0, "latitude of the centre (with --lng, instead of --postcode)")
	cmd.Flags().Float64("lng", 0, "longitude of the centre")
	cmd.Flags().Int("radius", 0, "search radius in metres (default discovery.radius_meters)")
}

// applySearchFlags copies explicitly set flags over the loaded config.
func applySearchFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("radius") {
		cfg.Discovery.RadiusMeters, _ = cmd.Flags().GetInt("radius")
	}
	if f := cmd.Flags().Lookup("keyword"); f != nil && f.Changed {
		cfg.Discovery.Keywords, _ = cmd.Flags().GetStringSlice("keyword")
	}
	if f := cmd.Flags().Lookup("keywords-file"); f != nil && f.Changed {
		cfg.Discovery.KeywordsFile, _ = cmd.Flags().GetString("keywords-file")
	}
	if f := cmd.Flags().Lookup("snapshot"); f != nil && f.Changed {
		cfg.Discovery.SnapshotPath, _ = cmd.Flags().GetString("snapshot")
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		cfg.Output.Path, _ = cmd.Flags().GetString("output")
	}
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		cfg.Output.Format, _ = cmd.Flags().GetString("format")
	}
}

// searchSpec builds a run spec from the search flags. Exactly one of
// --postcode or --lat/--lng must be given.
func searchSpec(cmd *cobra.Command) (store.RunSpec, error) {
	postcode, _ := cmd.Flags().GetString("postcode")
	hasLatLng := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")

	spec := store.RunSpec{Postcode: postcode, RadiusMeters: cfg.Discovery.RadiusMeters}
	switch {
	case postcode != "" && hasLatLng:
		return spec, eris.New("use either --postcode or --lat/--lng, not both")
	case postcode == "" && !hasLatLng:
		return spec, eris.New("--postcode or --lat/--lng is required")
	case hasLatLng:
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		spec.Center = geo.Point{Lat: geo.Round7(lat), Lng: geo.Round7(lng)}
	}
	return spec, nil
}

// resolveCenter returns the search centre, looking up the postcode when
// one was given.
func resolveCenter(ctx context.Context, spec store.RunSpec) (geo.Point, error) {
	if spec.Postcode == "" {
		return spec.Center, nil
	}
	p := pipeline.New(newPostcodesClient(), nil, nil, nil, nil, pipeline.Options{})
	return p.Locate(ctx, spec.Postcode)
}
