// Package enrich turns discovery candidates into leads: place details,
// a registry match and scraped contacts, merged into shared dedup state.
package enrich

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/resolve"
	"github.com/sells-group/leadfinder/internal/scrape"
	"github.com/sells-group/leadfinder/pkg/google"
)

const (
	// NoPhone is the placeholder for a place without a phone number.
	NoPhone = "x"

	// DefaultMaxRatings excludes chains and destinations with many reviews.
	DefaultMaxRatings = 350
	// DefaultWorkers bounds concurrent candidate enrichment.
	DefaultWorkers = 16
	// DefaultStagger spaces out worker starts.
	DefaultStagger = 50 * time.Millisecond
	// DefaultProgressEvery is how often progress is logged, in candidates.
	DefaultProgressEvery = 100
)

// DetailsFetcher looks up place details.
type DetailsFetcher interface {
	Details(ctx context.Context, placeID string) (*google.PlaceDetails, error)
}

// RegistryMatcher resolves a business name to a registry company.
type RegistryMatcher interface {
	Match(ctx context.Context, name string) (*resolve.Match, error)
}

// ContactScraper extracts contacts from a website.
type ContactScraper interface {
	Extract(ctx context.Context, website string) scrape.Contacts
}

// Config tunes enrichment.
type Config struct {
	MaxRatings    int
	Blocklist     []string
	Workers       int
	Stagger       time.Duration
	ProgressEvery int
}

// Stats summarises an enrichment run.
type Stats struct {
	Candidates int `json:"candidates"`
	Eligible   int `json:"eligible"`
	Failed     int `json:"failed"`
	Leads      int `json:"leads"`
}

// Orchestrator enriches candidates.
type Orchestrator struct {
	details  DetailsFetcher
	registry RegistryMatcher
	scraper  ContactScraper
	cfg      Config
}

// NewOrchestrator creates an Orchestrator, filling zero config values with
// defaults. A nil blocklist selects scrape.DefaultBlocklist.
func NewOrchestrator(details DetailsFetcher, registry RegistryMatcher, scraper ContactScraper, cfg Config) *Orchestrator {
	if cfg.MaxRatings <= 0 {
		cfg.MaxRatings = DefaultMaxRatings
	}
	if cfg.Blocklist == nil {
		cfg.Blocklist = scrape.DefaultBlocklist
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Orchestrator{details: details, registry: registry, scraper: scraper, cfg: cfg}
}

// Eligible reports whether c is worth enriching: open, under the rating
// ceiling and showing some sign of life.
func (o *Orchestrator) Eligible(c discovery.Candidate) bool {
	if c.Closed() {
		return false
	}
	if c.UserRatingsTotal >= o.cfg.MaxRatings {
		return false
	}
	return c.HasRating() || c.HasPhotos() || c.HasOpeningHours()
}

// outcome is what Process did with a candidate.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFailed
	outcomeDropped
	outcomeKept
)

// Process enriches one candidate and commits it to state. It reports the
// lead as stored and whether it was kept.
func (o *Orchestrator) Process(ctx context.Context, c discovery.Candidate, state *State) (Lead, bool) {
	lead, oc := o.process(ctx, c, state)
	return lead, oc == outcomeKept
}

func (o *Orchestrator) process(ctx context.Context, c discovery.Candidate, state *State) (Lead, outcome) {
	if !o.Eligible(c) {
		return Lead{}, outcomeSkipped
	}
	log := zap.L().With(zap.String("place_id", c.PlaceID), zap.String("name", c.Name))

	matchCh := make(chan *resolve.Match, 1)
	go func() {
		m, err := o.registry.Match(ctx, c.Name)
		if err != nil {
			log.Debug("registry match failed", zap.Error(err))
			m = nil
		}
		matchCh <- m
	}()

	details, err := o.details.Details(ctx, c.PlaceID)
	if err != nil {
		<-matchCh
		log.Warn("place details failed", zap.Error(err))
		return Lead{}, outcomeFailed
	}

	phone := details.FormattedPhoneNumber
	if phone == "" {
		phone = NoPhone
	}
	website := strings.ToLower(strings.TrimSpace(details.Website))
	if website == "" {
		website = scrape.NoWebsite
	}
	mobile := strings.HasPrefix(phone, "07")

	var contacts scrape.Contacts
	switch {
	case !state.WebsiteClaimed(website) && !scrape.IsBlocked(website, o.cfg.Blocklist):
		contacts = o.scraper.Extract(ctx, website)
	case mobile:
		// Shared or blocked website: keep only the listed mobile.
	default:
		<-matchCh
		return Lead{}, outcomeDropped
	}

	match := <-matchCh

	mobiles := append([]string(nil), contacts.Mobiles...)
	if mobile {
		mobiles = append(mobiles, strings.ReplaceAll(phone, " ", ""))
	}

	lead := Lead{
		PlaceID: c.PlaceID,
		Name:    c.Name,
		Website: website,
		URL:     details.URL,
		Mobiles: mobiles,
		Emails:  contacts.Emails,
	}
	if match != nil {
		score := match.Score
		lead.Company = match.Name
		lead.CompanyNumber = match.CompanyNumber
		lead.Directors = match.Directors
		lead.Score = &score
	}

	kept, ok := state.Commit(lead)
	if !ok {
		log.Debug("no new contacts")
		return kept, outcomeDropped
	}
	log.Info("lead kept", zap.Int("emails", len(kept.Emails)), zap.Int("mobiles", len(kept.Mobiles)))
	return kept, outcomeKept
}

// Run enriches every candidate through a bounded worker pool, committing
// into state. Worker starts are staggered. Per-candidate failures are
// logged and never abort the run.
func (o *Orchestrator) Run(ctx context.Context, candidates []discovery.Candidate, state *State) (*Stats, error) {
	log := zap.L().With(zap.String("component", "enrich"), zap.Int("candidates", len(candidates)))
	log.Info("enrichment starting", zap.Int("workers", o.cfg.Workers))

	var limiter *rate.Limiter
	if o.cfg.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(o.cfg.Stagger), 1)
	}

	var done, eligible, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for _, c := range candidates {
		if !o.Eligible(c) {
			done.Add(1)
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		eligible.Add(1)
		g.Go(func() error {
			if _, oc := o.process(ctx, c, state); oc == outcomeFailed {
				failed.Add(1)
			}
			if n := done.Add(1); n%int64(o.cfg.ProgressEvery) == 0 {
				log.Info("enrichment progress", zap.Int64("done", n), zap.Int("leads", state.Len()))
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := &Stats{
		Candidates: len(candidates),
		Eligible:   int(eligible.Load()),
		Failed:     int(failed.Load()),
		Leads:      state.Len(),
	}
	if err := ctx.Err(); err != nil {
		return stats, eris.Wrap(err, "enrich: canceled")
	}

	log.Info("enrichment complete",
		zap.Int("eligible", stats.Eligible),
		zap.Int("failed", stats.Failed),
		zap.Int("leads", stats.Leads),
	)
	return stats, nil
}
