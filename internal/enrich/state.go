package enrich

import (
	"sync"

	"github.com/sells-group/leadfinder/internal/resolve"
)

// Lead is an enriched candidate that contributed at least one new email or
// mobile.
type Lead struct {
	PlaceID       string             `json:"place_id"`
	Name          string             `json:"name"`
	Company       string             `json:"company,omitempty"`
	CompanyNumber string             `json:"company_number,omitempty"`
	Website       string             `json:"website"`
	URL           string             `json:"url"`
	Mobiles       []string           `json:"mobiles"`
	Emails        []string           `json:"emails"`
	Directors     []resolve.Director `json:"directors"`
	Score         *float64           `json:"score,omitempty"`
}

// State is the run-wide dedup state shared by every enrichment worker.
// One mutex guards the claimed sets and the lead map together.
type State struct {
	mu       sync.Mutex
	websites map[string]bool
	emails   map[string]bool
	mobiles  map[string]bool
	leads    map[string]Lead
	order    []string
}

// NewState creates empty dedup state.
func NewState() *State {
	return &State{
		websites: make(map[string]bool),
		emails:   make(map[string]bool),
		mobiles:  make(map[string]bool),
		leads:    make(map[string]Lead),
	}
}

// Seed pre-claims emails and mobiles so no lead is attributed them.
func (s *State) Seed(emails, mobiles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range emails {
		s.emails[e] = true
	}
	for _, m := range mobiles {
		s.mobiles[m] = true
	}
}

// WebsiteClaimed reports whether a kept lead already owns website. The
// answer may be stale by the time the caller acts on it; Commit is the
// authoritative check for emails and mobiles.
func (s *State) WebsiteClaimed(website string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.websites[website]
}

// Commit atomically drops the lead's already-claimed emails and mobiles
// and, when any remain, claims them along with the website and records the
// lead. It returns the lead as stored and whether it was kept.
func (s *State) Commit(l Lead) (Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Emails = unclaimed(l.Emails, s.emails)
	l.Mobiles = unclaimed(l.Mobiles, s.mobiles)
	if len(l.Emails) == 0 && len(l.Mobiles) == 0 {
		return l, false
	}

	s.websites[l.Website] = true
	for _, e := range l.Emails {
		s.emails[e] = true
	}
	for _, m := range l.Mobiles {
		s.mobiles[m] = true
	}
	if _, ok := s.leads[l.PlaceID]; !ok {
		s.order = append(s.order, l.PlaceID)
	}
	s.leads[l.PlaceID] = l
	return l, true
}

// Leads returns the kept leads in commit order.
func (s *State) Leads() []Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lead, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.leads[id])
	}
	return out
}

// Len returns the number of kept leads.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// unclaimed returns the distinct values not present in claimed.
func unclaimed(values []string, claimed map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || claimed[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
