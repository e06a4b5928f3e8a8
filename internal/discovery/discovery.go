// Package discovery finds candidate businesses by fanning Places nearby
// searches across a sample grid and merging the results.
package discovery

import (
	"github.com/sells-group/leadfinder/pkg/google"
)

// Candidate is a business surfaced by discovery, keyed by its place ID.
// It is never mutated after it enters a Set.
type Candidate struct {
	google.Place
}

// ID returns the directory-assigned identifier.
func (c Candidate) ID() string { return c.PlaceID }

// HasRating reports whether the directory published a rating value.
func (c Candidate) HasRating() bool { return c.Rating != nil && *c.Rating > 0 }

// HasPhotos reports whether the place carries at least one photo.
func (c Candidate) HasPhotos() bool { return len(c.Photos) > 0 }

// HasOpeningHours reports whether the place publishes opening hours.
func (c Candidate) HasOpeningHours() bool { return c.OpeningHours != nil }

// Closed reports whether the place is closed, temporarily or permanently.
func (c Candidate) Closed() bool {
	return c.BusinessStatus == google.StatusClosedPermanently ||
		c.BusinessStatus == google.StatusClosedTemporarily
}

// Set is a deduplicated collection of candidates. The first candidate added
// for an ID wins; later duplicates are discarded. Iteration follows
// insertion order.
type Set struct {
	byID  map[string]Candidate
	order []string
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{byID: make(map[string]Candidate)}
}

// Add inserts c unless its ID is empty or already present. It reports
// whether c was inserted.
func (s *Set) Add(c Candidate) bool {
	id := c.ID()
	if id == "" {
		return false
	}
	if _, ok := s.byID[id]; ok {
		return false
	}
	s.byID[id] = c
	s.order = append(s.order, id)
	return true
}

// Get returns the candidate stored for id.
func (s *Set) Get(id string) (Candidate, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Len returns the number of unique candidates.
func (s *Set) Len() int { return len(s.order) }

// Candidates returns the candidates in insertion order.
func (s *Set) Candidates() []Candidate {
	out := make([]Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
