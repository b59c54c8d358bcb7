package gate

import (
	"fmt"
	"io"
	"sort"

	"github.com/winefeed/vine/pkg/models"
)

// WriteReport renders one import report in a plain text form suitable for CI
// logs.
func WriteReport(w io.Writer, report *ImportReport) {
	fmt.Fprintf(w, "import %s (tenant %s)\n", report.ImportID, report.TenantID)
	fmt.Fprintf(w, "  lines audited: %d, clean: %d, dirty: %d\n", report.LinesAudited, report.CleanCount, report.DirtyCount())

	if report.MissingProducts > 0 {
		fmt.Fprintf(w, "  missing product links: %d\n", report.MissingProducts)
	}

	if len(report.ViolationCounts) > 0 {
		types := make([]string, 0, len(report.ViolationCounts))
		for t := range report.ViolationCounts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "  %s: %d\n", t, report.ViolationCounts[models.ViolationType(t)])
		}
	}

	if len(report.RiskFlagCounts) > 0 {
		types := make([]string, 0, len(report.RiskFlagCounts))
		for t := range report.RiskFlagCounts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "  risk %s: %d\n", t, report.RiskFlagCounts[models.RiskFlagType(t)])
		}
	}

	for _, finding := range report.Findings {
		if finding.Clean() && !finding.Flagged() {
			continue
		}
		fmt.Fprintf(w, "  line %d (%s) status=%s method=%s confidence=%.2f\n",
			finding.LineNumber, finding.LineID, finding.Status, finding.Method, finding.Confidence)
		if finding.MissingProduct {
			fmt.Fprintf(w, "    no catalog product behind an automatic match\n")
		}
		for _, v := range finding.Violations {
			fmt.Fprintf(w, "    %s: %s\n", v.Type, v.Reason)
		}
		for _, flag := range finding.RiskFlags {
			fmt.Fprintf(w, "    risk %s: %s\n", flag.Type, flag.Description)
		}
	}

	if report.Passed() {
		fmt.Fprintf(w, "  PASS\n")
	} else {
		fmt.Fprintf(w, "  FAIL\n")
	}
}

// WriteSummary renders the run-level banner across all audited imports.
func WriteSummary(w io.Writer, reports []*ImportReport) bool {
	var audited, dirty int
	for _, r := range reports {
		audited += r.LinesAudited
		dirty += r.DirtyCount()
	}

	fmt.Fprintf(w, "\naudited %d lines across %d imports, %d dirty\n", audited, len(reports), dirty)
	if dirty == 0 {
		fmt.Fprintf(w, "SAFETY GATE: PASS\n")
		return true
	}
	fmt.Fprintf(w, "SAFETY GATE: FAIL\n")
	return false
}
