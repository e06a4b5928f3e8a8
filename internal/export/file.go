package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadfinder/internal/enrich"
)

// CSVWriter writes leads as CSV with a header row.
type CSVWriter struct {
	Path string
}

// Write implements Writer.
func (w *CSVWriter) Write(_ context.Context, leads []enrich.Lead) error {
	f, err := os.Create(w.Path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", w.Path)
	}
	defer f.Close() //nolint:errcheck

	cw := csv.NewWriter(f)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Row{}); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for _, r := range Rows(leads) {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "export: csv row %s", r.PlaceID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return eris.Wrap(f.Close(), "export: close csv")
}

// XLSXWriter writes leads to a single-sheet workbook.
type XLSXWriter struct {
	Path  string
	Sheet string // default "Leads"
}

// Write implements Writer.
func (w *XLSXWriter) Write(_ context.Context, leads []enrich.Lead) error {
	name := w.Sheet
	if name == "" {
		name = "Leads"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, Header)
	for _, r := range Rows(leads) {
		addRow(sheet, r.Cells())
	}

	if err := f.Save(w.Path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", w.Path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// JSONWriter writes the full lead records as an indented JSON array.
type JSONWriter struct {
	Path string
}

// Write implements Writer.
func (w *JSONWriter) Write(_ context.Context, leads []enrich.Lead) error {
	if leads == nil {
		leads = []enrich.Lead{}
	}
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal leads")
	}
	if err := os.WriteFile(w.Path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", w.Path)
	}
	return nil
}
