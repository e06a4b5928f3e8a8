package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Command modes accepted by Validate.
const (
	ModeFind     = "find"
	ModeDiscover = "discover"
	ModeEnrich   = "enrich"
	ModeGrid     = "grid"
	ModeRegion   = "region"
	ModeRuns     = "runs"
)

// Validate checks that the settings a command needs are present and in
// range. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	discover := func() {
		require(c.Google.Key != "", "google.key is required")
		require(c.Discovery.RadiusMeters > 0, "discovery.radius_meters must be > 0")
		require(c.Discovery.Concurrency >= 1 && c.Discovery.Concurrency <= 64,
			"discovery.concurrency must be between 1 and 64")
		require(c.Discovery.StaggerMs >= 0, "discovery.stagger_ms must be >= 0")
		require(c.Discovery.SettleMs >= 0, "discovery.settle_ms must be >= 0")
	}
	enrich := func() {
		require(c.Google.Key != "", "google.key is required")
		require(c.CompaniesHouse.Token != "", "companies_house.token is required")
		require(c.Enrich.Workers >= 1 && c.Enrich.Workers <= 128, "enrich.workers must be between 1 and 128")
		require(c.Enrich.MaxRatings > 0, "enrich.max_ratings must be > 0")
		require(c.Enrich.NameLengthRatio >= 0 && c.Enrich.NameLengthRatio <= 1,
			"enrich.name_length_ratio must be between 0 and 1")
		require(c.Enrich.WordOverlap >= 0 && c.Enrich.WordOverlap <= 1,
			"enrich.word_overlap must be between 0 and 1")
		require(c.Scrape.MaxDepth >= 0, "scrape.max_depth must be >= 0")
		require(c.Scrape.TimeoutSecs > 0, "scrape.timeout_secs must be > 0")
		require(c.Output.Path != "", "output.path is required")
		if c.Notion.Token != "" {
			require(c.Notion.LeadDB != "", "notion.lead_db is required when notion.token is set")
		}
	}

	switch mode {
	case ModeFind:
		discover()
		enrich()
	case ModeDiscover:
		discover()
	case ModeEnrich:
		enrich()
	case ModeGrid:
		require(c.Discovery.RadiusMeters > 0, "discovery.radius_meters must be > 0")
	case ModeRegion:
		require(c.Region.PostcodeDB != "", "region.postcode_db is required")
	case ModeRuns:
		require(c.Store.Driver != "", "store.driver is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "" {
		require(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			"store.driver must be sqlite or postgres")
		require(c.Store.DatabaseURL != "", "store.database_url is required when store.driver is set")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
