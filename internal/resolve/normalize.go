package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// legalSuffixes are UK legal-entity tokens dropped during normalisation.
var legalSuffixes = map[string]bool{
	"ltd":     true,
	"limited": true,
	"llp":     true,
	"lp":      true,
	"plc":     true,
	"cic":     true,
}

var punctuation = strings.NewReplacer(
	",", " ",
	".", "",
	"'", "",
	"’", "",
	"\"", "",
	"(", " ",
	")", " ",
)

// Tokens normalises a company or business name into match tokens:
//  1. Lower-case
//  2. Strip punctuation
//  3. Split on whitespace
//  4. Drop legal-entity suffixes (ltd, limited, llp, ...)
func Tokens(name string) []string {
	name = punctuation.Replace(strings.ToLower(name))
	fields := strings.Fields(name)
	out := fields[:0]
	for _, f := range fields {
		if !legalSuffixes[f] {
			out = append(out, f)
		}
	}
	return out
}

// titleCase title-cases s. A Caser is stateful, so one is made per call.
func titleCase(s string) string {
	return cases.Title(language.BritishEnglish).String(s)
}

// DisplayName is the business name as shown on a lead: apostrophes removed
// and title-cased.
func DisplayName(name string) string {
	return titleCase(strings.TrimSpace(strings.ReplaceAll(name, "'", "")))
}

// FormatOfficerName turns the registry's "SURNAME, Given Names" form into
// "Given Names Surname" in title case.
func FormatOfficerName(name string) string {
	name = strings.ReplaceAll(name, "'", "")
	surname, given, ok := strings.Cut(name, ",")
	if !ok {
		return titleCase(strings.Join(strings.Fields(name), " "))
	}
	parts := append(strings.Fields(given), strings.Fields(surname)...)
	return titleCase(strings.Join(parts, " "))
}
