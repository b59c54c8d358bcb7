// Package gate re-validates automatically matched lines against the current
// catalog. It is read-only: auditing an import mutates nothing and can run
// any number of times with the same outcome for the same data.
package gate

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/matching"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// LineFinding is the audit outcome for one automatically matched line.
type LineFinding struct {
	LineID     string             `json:"line_id"`
	LineNumber int                `json:"line_number"`
	ResultID   string             `json:"result_id"`
	Status     models.MatchStatus `json:"status"`
	Method     models.MatchMethod `json:"method"`
	Confidence float64            `json:"confidence"`
	ProductID  *string            `json:"product_id,omitempty"`

	// MissingProduct is set when an automatic result points at no product or
	// at a product that no longer exists.
	MissingProduct bool                        `json:"missing_product"`
	Violations     []models.GuardrailViolation `json:"violations,omitempty"`
	RiskFlags      []models.RiskFlag           `json:"risk_flags,omitempty"`
}

// Clean reports whether the line passed the audit. Only guardrail violations
// fail a line; risk flags, including a missing product link, are informational
// and surface in the report without blocking.
func (f *LineFinding) Clean() bool {
	return len(f.Violations) == 0
}

// Flagged reports whether the line carries risk flags worth itemizing even
// when it passed.
func (f *LineFinding) Flagged() bool {
	return len(f.RiskFlags) > 0
}

// ImportReport is the audit outcome for one import.
type ImportReport struct {
	TenantID     string        `json:"tenant_id"`
	ImportID     string        `json:"import_id"`
	LinesAudited int           `json:"lines_audited"`
	CleanCount   int           `json:"clean_count"`
	Findings     []LineFinding `json:"findings"`

	ViolationCounts map[models.ViolationType]int `json:"violation_counts"`
	RiskFlagCounts  map[models.RiskFlagType]int  `json:"risk_flag_counts"`
	MissingProducts int                          `json:"missing_products"`
}

// Passed reports whether every audited line came back clean.
func (r *ImportReport) Passed() bool {
	return r.CleanCount == r.LinesAudited
}

// DirtyCount returns the number of lines that failed the audit.
func (r *ImportReport) DirtyCount() int {
	return r.LinesAudited - r.CleanCount
}

// Auditor re-runs the guardrails over stored automatic matches.
type Auditor struct {
	lines      repositories.ImportLineRepo
	guardrails *matching.GuardrailValidator
	logger     ectologger.Logger
}

// NewAuditor creates a new Auditor.
func NewAuditor(lines repositories.ImportLineRepo, guardrails *matching.GuardrailValidator, logger ectologger.Logger) *Auditor {
	return &Auditor{
		lines:      lines,
		guardrails: guardrails,
		logger:     logger,
	}
}

// AuditImport fetches every line of the import whose latest result is
// automatic and validates it against the product as it exists now. Each line
// is judged on a single snapshot of (line, result, product).
func (a *Auditor) AuditImport(ctx context.Context, tenantID, importID string) (*ImportReport, error) {
	ctx, span := tracing.StartSpan(ctx, "gate.Auditor.AuditImport")
	defer span.End()

	rows, err := a.lines.ListAutoMatchedForAudit(ctx, tenantID, importID)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		TenantID:        tenantID,
		ImportID:        importID,
		LinesAudited:    len(rows),
		ViolationCounts: make(map[models.ViolationType]int),
		RiskFlagCounts:  make(map[models.RiskFlagType]int),
	}

	for i := range rows {
		row := &rows[i]
		finding := LineFinding{
			LineID:     row.Line.ID,
			LineNumber: row.Line.LineNumber,
			ResultID:   row.Result.ID,
			Status:     row.Result.Status,
			Method:     row.Result.Method,
			Confidence: row.Result.Confidence,
			ProductID:  row.Result.MatchedProductID,
		}

		if row.Result.MatchedProductID == nil || row.Product == nil {
			finding.MissingProduct = true
			report.MissingProducts++
		} else {
			finding.Violations = a.guardrails.Validate(&row.Line, row.Product)
			for _, v := range finding.Violations {
				report.ViolationCounts[v.Type]++
			}
		}

		finding.RiskFlags = matching.RecomputeRiskFlags(&row.Line, &row.Result, row.Product)
		for _, flag := range finding.RiskFlags {
			report.RiskFlagCounts[flag.Type]++
		}

		if finding.Clean() {
			report.CleanCount++
		}
		report.Findings = append(report.Findings, finding)
	}

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"import_id": importID,
		"audited":   report.LinesAudited,
		"dirty":     report.DirtyCount(),
	}).Info("Import audit completed")

	return report, nil
}

// AuditRecent audits every import that received lines since, across tenants.
// All imports are audited even when an early one fails, so a full run always
// reports the full picture.
func (a *Auditor) AuditRecent(ctx context.Context, since time.Time) ([]*ImportReport, error) {
	ctx, span := tracing.StartSpan(ctx, "gate.Auditor.AuditRecent")
	defer span.End()

	refs, err := a.lines.ListRecentImports(ctx, since)
	if err != nil {
		return nil, err
	}

	var reports []*ImportReport
	var firstErr error
	for _, ref := range refs {
		report, err := a.AuditImport(ctx, ref.TenantID, ref.ImportID)
		if err != nil {
			a.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id": ref.TenantID,
				"import_id": ref.ImportID,
			}).Error("Import audit failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reports = append(reports, report)
	}

	return reports, firstErr
}
