// Package resolve matches business names against Companies House and
// resolves the matched company's current directors.
package resolve

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/pkg/companieshouse"
)

// UndatedAppointment sorts directors without an appointment date last.
const UndatedAppointment = "2050-01-01"

// Thresholds gate a registry hit. Both comparisons are strict.
type Thresholds struct {
	// NameLengthRatio is the minimum input/result token-count ratio.
	NameLengthRatio float64
	// WordOverlap is the minimum fraction of input tokens found in the result.
	WordOverlap float64
}

// DefaultThresholds are tuned for high-street business names.
var DefaultThresholds = Thresholds{NameLengthRatio: 0.63, WordOverlap: 0.66}

// Director is a current company director.
type Director struct {
	Name        string `json:"name"`
	AppointedOn string `json:"appointed_on"`
	BirthYear   int    `json:"birth_year"`
}

func (d Director) String() string {
	return fmt.Sprintf("%s (%s, %d)", d.Name, d.AppointedOn, d.BirthYear)
}

// Match is a resolved registry company.
type Match struct {
	CompanyNumber string     `json:"company_number"`
	Title         string     `json:"title"`
	Name          string     `json:"name"`
	Directors     []Director `json:"directors"`
	Score         float64    `json:"score"`
}

// WordOverlap returns the fraction of input tokens present in result.
func WordOverlap(input, result []string) float64 {
	if len(input) == 0 {
		return 0
	}
	set := make(map[string]bool, len(result))
	for _, t := range result {
		set[t] = true
	}
	hits := 0
	for _, t := range input {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(input))
}

// Scored is a registry hit that passed the thresholds.
type Scored struct {
	Item  companieshouse.CompanyItem
	Score float64
}

// Rank scores items against name and returns the survivors, best first.
// Ties on score go to the shorter title, then the lower company number.
func Rank(name string, items []companieshouse.CompanyItem, th Thresholds) []Scored {
	input := Tokens(name)
	if len(input) == 0 {
		return nil
	}

	var out []Scored
	for _, it := range items {
		if !it.Active() {
			continue
		}
		result := Tokens(it.Title)
		if len(result) == 0 {
			continue
		}
		if float64(len(input))/float64(len(result)) <= th.NameLengthRatio {
			continue
		}
		score := WordOverlap(input, result)
		if score <= th.WordOverlap {
			continue
		}
		out = append(out, Scored{Item: it, Score: score})
	}

	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if la, lb := len(a.Item.Title), len(b.Item.Title); la != lb {
			return la - lb
		}
		return strings.Compare(a.Item.CompanyNumber, b.Item.CompanyNumber)
	})
	return out
}

// ResolveDirectors keeps serving directors with a known birth year and
// orders them by appointment date, undated last.
func ResolveDirectors(officers []companieshouse.Officer) []Director {
	var out []Director
	for _, o := range officers {
		if o.ResignedOn != "" || o.DateOfBirth == nil || o.DateOfBirth.Year == 0 {
			continue
		}
		if !strings.EqualFold(o.OfficerRole, "director") {
			continue
		}
		appointed := o.AppointedOn
		if appointed == "" {
			appointed = UndatedAppointment
		}
		out = append(out, Director{
			Name:        FormatOfficerName(o.Name),
			AppointedOn: appointed,
			BirthYear:   o.DateOfBirth.Year,
		})
	}
	slices.SortStableFunc(out, func(a, b Director) int {
		return strings.Compare(a.AppointedOn, b.AppointedOn)
	})
	return out
}

// Matcher resolves business names to registry companies.
type Matcher struct {
	client     companieshouse.Client
	thresholds Thresholds
}

// NewMatcher creates a Matcher.
func NewMatcher(client companieshouse.Client, th Thresholds) *Matcher {
	return &Matcher{client: client, thresholds: th}
}

// Match searches the registry for name. It returns nil without error when
// no company passes the thresholds or the best one has no directors.
func (m *Matcher) Match(ctx context.Context, name string) (*Match, error) {
	if len(Tokens(name)) == 0 {
		return nil, nil
	}

	items, err := m.client.SearchCompanies(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: search companies")
	}

	ranked := Rank(name, items, m.thresholds)
	if len(ranked) == 0 {
		return nil, nil
	}
	best := ranked[0]

	officers, err := m.client.Officers(ctx, best.Item.CompanyNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: officers for %s", best.Item.CompanyNumber)
	}

	directors := ResolveDirectors(officers)
	if len(directors) == 0 {
		zap.L().Debug("registry match has no current directors",
			zap.String("name", name),
			zap.String("company_number", best.Item.CompanyNumber),
		)
		return nil, nil
	}

	return &Match{
		CompanyNumber: best.Item.CompanyNumber,
		Title:         best.Item.Title,
		Name:          DisplayName(name),
		Directors:     directors,
		Score:         best.Score,
	}, nil
}
