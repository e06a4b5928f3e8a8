// Package store persists lead-finding runs with their candidates and leads.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
	"github.com/sells-group/leadfinder/internal/geo"
	"github.com/sells-group/leadfinder/internal/resolve"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunSpec describes the search a run performs.
type RunSpec struct {
	Postcode     string    `json:"postcode,omitempty"`
	Center       geo.Point `json:"center"`
	RadiusMeters int       `json:"radius_meters"`
	Keywords     []string  `json:"keywords"`
}

// Run is one persisted lead-finding run.
type Run struct {
	ID string `json:"id"`
	RunSpec
	Status     RunStatus `json:"status"`
	Candidates int       `json:"candidates"`
	Leads      int       `json:"leads"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 100

// Store defines run persistence.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, spec RunSpec) (*Run, error)
	CompleteRun(ctx context.Context, runID string, candidates, leads int) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Run contents
	SaveCandidates(ctx context.Context, runID string, candidates []discovery.Candidate) error
	ListCandidates(ctx context.Context, runID string) ([]discovery.Candidate, error)
	SaveLeads(ctx context.Context, runID string, leads []enrich.Lead) error
	ListLeads(ctx context.Context, runID string) ([]enrich.Lead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Snapshot adapts a store run to a discovery snapshot writer.
func Snapshot(s Store, runID string) discovery.SnapshotWriter {
	return discovery.SnapshotFunc(func(ctx context.Context, candidates []discovery.Candidate) error {
		return s.SaveCandidates(ctx, runID, candidates)
	})
}

// leadColumnList is leadColumns joined for SQL.
var leadColumnList = strings.Join(leadColumns, ", ")

// leadColumns is the column order shared by both backends.
var leadColumns = []string{
	"run_id", "place_id", "position", "name", "company", "company_number",
	"website", "url", "mobiles", "emails", "directors", "score",
}

// leadRow flattens a lead into leadColumns order, JSON-encoding the lists.
func leadRow(runID string, pos int, l enrich.Lead) ([]any, error) {
	mobiles, err := json.Marshal(nonNil(l.Mobiles))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal mobiles")
	}
	emails, err := json.Marshal(nonNil(l.Emails))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal emails")
	}
	directors := l.Directors
	if directors == nil {
		directors = []resolve.Director{}
	}
	dirs, err := json.Marshal(directors)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal directors")
	}
	return []any{
		runID, l.PlaceID, pos, l.Name, l.Company, l.CompanyNumber,
		l.Website, l.URL, string(mobiles), string(emails), string(dirs), l.Score,
	}, nil
}

// decodeLead fills the JSON-encoded list fields of l.
func decodeLead(l *enrich.Lead, mobiles, emails, directors string) error {
	if err := json.Unmarshal([]byte(mobiles), &l.Mobiles); err != nil {
		return eris.Wrap(err, "store: unmarshal mobiles")
	}
	if err := json.Unmarshal([]byte(emails), &l.Emails); err != nil {
		return eris.Wrap(err, "store: unmarshal emails")
	}
	if err := json.Unmarshal([]byte(directors), &l.Directors); err != nil {
		return eris.Wrap(err, "store: unmarshal directors")
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return DefaultListLimit
	}
	return filter.Limit
}
