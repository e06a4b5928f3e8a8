package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// FormatReport renders a human-readable summary of a pass.
func FormatReport(sum *Summary) string {
	var b strings.Builder

	b.WriteString("# Lead Finder Report\n")
	if sum.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", sum.RunID)
	}
	fmt.Fprintf(&b, "Centre: %s\n\n", sum.Center)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Candidates found: %d\n", sum.Candidates)
	if d := sum.Discovery; d != nil {
		fmt.Fprintf(&b, "- Fetch tasks: %d (%d failed, %d raw results)\n", d.Tasks, d.FailedTasks, d.Raw)
	}
	if e := sum.Enrich; e != nil {
		fmt.Fprintf(&b, "- Eligible: %d (%d failed)\n", e.Eligible, e.Failed)
	}
	fmt.Fprintf(&b, "- Leads kept: %d\n\n", sum.Leads)

	b.WriteString("## Phases\n")
	for _, p := range sum.Phases {
		fmt.Fprintf(&b, "- %s (%dms)\n", p.Name, p.Duration)
		if p.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", p.Error)
		}
	}
	return b.String()
}

// WriteReport writes FormatReport(sum) to w.
func WriteReport(w io.Writer, sum *Summary) error {
	_, err := io.WriteString(w, FormatReport(sum))
	return err
}
