// Package export writes the lead table to files and external sinks.
package export

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/enrich"
)

// Supported file formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Row is one flattened lead.
type Row struct {
	Name          string `csv:"name" json:"name"`
	Company       string `csv:"company" json:"company"`
	CompanyNumber string `csv:"company_number" json:"company_number"`
	Website       string `csv:"website" json:"website"`
	URL           string `csv:"url" json:"url"`
	Mobiles       string `csv:"mobiles" json:"mobiles"`
	Emails        string `csv:"emails" json:"emails"`
	Directors     string `csv:"directors" json:"directors"`
	Score         string `csv:"score" json:"score"`
	PlaceID       string `csv:"place_id" json:"place_id"`
}

// Header lists the column names in Row order.
var Header = []string{"name", "company", "company_number", "website", "url", "mobiles", "emails", "directors", "score", "place_id"}

// Cells returns the row's values in Header order.
func (r Row) Cells() []string {
	return []string{r.Name, r.Company, r.CompanyNumber, r.Website, r.URL, r.Mobiles, r.Emails, r.Directors, r.Score, r.PlaceID}
}

// RowFrom flattens a lead. Lists are joined with ", " and directors with "; ".
func RowFrom(l enrich.Lead) Row {
	directors := make([]string, 0, len(l.Directors))
	for _, d := range l.Directors {
		directors = append(directors, d.String())
	}
	var score string
	if l.Score != nil {
		score = strconv.FormatFloat(*l.Score, 'f', 2, 64)
	}
	return Row{
		Name:          l.Name,
		Company:       l.Company,
		CompanyNumber: l.CompanyNumber,
		Website:       l.Website,
		URL:           l.URL,
		Mobiles:       strings.Join(l.Mobiles, ", "),
		Emails:        strings.Join(l.Emails, ", "),
		Directors:     strings.Join(directors, "; "),
		Score:         score,
		PlaceID:       l.PlaceID,
	}
}

// Rows flattens leads in order.
func Rows(leads []enrich.Lead) []Row {
	rows := make([]Row, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, RowFrom(l))
	}
	return rows
}

// Writer persists a lead table.
type Writer interface {
	Write(ctx context.Context, leads []enrich.Lead) error
}

// New returns a file writer for format. An empty format is inferred from
// the path extension.
func New(format, path string) (Writer, error) {
	if path == "" {
		return nil, eris.New("export: output path is required")
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case FormatCSV:
		return &CSVWriter{Path: path}, nil
	case FormatXLSX:
		return &XLSXWriter{Path: path}, nil
	case FormatJSON:
		return &JSONWriter{Path: path}, nil
	default:
		return nil, eris.Errorf("export: unsupported format %q", format)
	}
}

// Multi writes to every writer in order, stopping at the first error.
type Multi []Writer

// Write implements Writer.
func (m Multi) Write(ctx context.Context, leads []enrich.Lead) error {
	for _, w := range m {
		if err := w.Write(ctx, leads); err != nil {
			return err
		}
	}
	return nil
}
