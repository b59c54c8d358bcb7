package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
	"github.com/winefeed/vine/pkg/winedb"
)

// Overall states of the match-quality report.
const (
	StatePass             = "PASS"
	StateWarn             = "WARN"
	StateFail             = "FAIL"
	StateInsufficientData = "INSUFFICIENT_DATA"
)

// ReporterConfig holds the healthy bounds for the rolling window.
type ReporterConfig struct {
	WindowDays        int
	MinSampleSize     int
	MinAutoMatchRate  float64
	MaxSuggestedRate  float64
	MinAvgConfidence  float64
	MaxAutoCreateRate float64
	RecentLimit       int
}

// DefaultReporterConfig returns the default bounds.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		WindowDays:        7,
		MinSampleSize:     10,
		MinAutoMatchRate:  0.30,
		MaxSuggestedRate:  0.60,
		MinAvgConfidence:  0.75,
		MaxAutoCreateRate: 0.50,
		RecentLimit:       20,
	}
}

// IdentifierCoverage is the share of window lines carrying each identifier.
type IdentifierCoverage struct {
	GTINPct float64 `json:"gtin_pct"`
	LWINPct float64 `json:"lwin_pct"`
	SKUPct  float64 `json:"sku_pct"`
	TextPct float64 `json:"text_pct"`
}

// RecentMatch is one row of the recent activity list.
type RecentMatch struct {
	LineID      string             `json:"line_id"`
	Status      models.MatchStatus `json:"status"`
	Method      models.MatchMethod `json:"method"`
	Confidence  float64            `json:"confidence"`
	Explanation string             `json:"explanation"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Report is the match-quality summary over the rolling window.
type Report struct {
	OverallState string    `json:"overall_state"`
	WindowDays   int       `json:"window_days"`
	GeneratedAt  time.Time `json:"generated_at"`

	TotalMatches      int     `json:"total_matches"`
	AutoMatchRate     float64 `json:"auto_match_rate"`
	SuggestedRate     float64 `json:"suggested_rate"`
	AvgAutoConfidence float64 `json:"avg_auto_confidence"`
	AutoCreateRate    float64 `json:"auto_create_rate"`

	StatusCounts       map[models.MatchStatus]int `json:"status_counts"`
	IdentifierCoverage IdentifierCoverage         `json:"identifier_coverage"`

	Recent          []RecentMatch `json:"recent"`
	Warnings        []string      `json:"warnings"`
	Recommendations []string      `json:"recommendations"`
}

// Reporter computes the match-quality report.
type Reporter struct {
	results  repositories.MatchResultRepo
	lines    repositories.ImportLineRepo
	products repositories.CatalogProductRepo
	config   ReporterConfig
	logger   ectologger.Logger
}

// NewReporter creates a new Reporter.
func NewReporter(
	results repositories.MatchResultRepo,
	lines repositories.ImportLineRepo,
	products repositories.CatalogProductRepo,
	config ReporterConfig,
	logger ectologger.Logger,
) *Reporter {
	if config.WindowDays < 1 {
		config.WindowDays = 7
	}
	if config.RecentLimit < 1 {
		config.RecentLimit = 20
	}
	return &Reporter{
		results:  results,
		lines:    lines,
		products: products,
		config:   config,
		logger:   logger,
	}
}

const maxExplanationLength = 120

// Report computes the summary for a tenant over the rolling window.
func (r *Reporter) Report(ctx context.Context, tenantID string) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "health.Reporter.Report")
	defer span.End()

	since := time.Now().UTC().AddDate(0, 0, -r.config.WindowDays)

	counts, err := r.results.CountByStatusSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	report := &Report{
		WindowDays:   r.config.WindowDays,
		GeneratedAt:  time.Now().UTC(),
		StatusCounts: make(map[models.MatchStatus]int),
	}

	var autoCount int
	var suggestedCount int
	var weightedAutoConfidence float64
	for _, sc := range counts {
		report.StatusCounts[sc.Status] = sc.Count
		report.TotalMatches += sc.Count
		if sc.Status.IsAutoEquivalent() {
			autoCount += sc.Count
			weightedAutoConfidence += sc.AvgConfidence * float64(sc.Count)
		}
		if sc.Status == models.MatchStatusSuggested {
			suggestedCount += sc.Count
		}
	}

	if report.TotalMatches > 0 {
		report.AutoMatchRate = float64(autoCount) / float64(report.TotalMatches)
		report.SuggestedRate = float64(suggestedCount) / float64(report.TotalMatches)
	}
	if autoCount > 0 {
		report.AvgAutoConfidence = weightedAutoConfidence / float64(autoCount)
	}

	autoCreated, err := r.products.CountAutoCreatedSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	if report.TotalMatches > 0 {
		report.AutoCreateRate = float64(autoCreated) / float64(report.TotalMatches)
	}

	coverage, err := r.lines.GetIdentifierCoverage(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	if coverage.Total > 0 {
		total := float64(coverage.Total)
		report.IdentifierCoverage = IdentifierCoverage{
			GTINPct: float64(coverage.WithGTIN) / total * 100,
			LWINPct: float64(coverage.WithLWIN) / total * 100,
			SKUPct:  float64(coverage.WithSKU) / total * 100,
		}
		withAny := coverage.WithGTIN + coverage.WithLWIN + coverage.WithSKU
		if textOnly := coverage.Total - withAny; textOnly > 0 {
			report.IdentifierCoverage.TextPct = float64(textOnly) / total * 100
		}
	}

	recent, err := r.results.ListRecent(ctx, tenantID, since, r.config.RecentLimit)
	if err != nil {
		return nil, err
	}
	for _, result := range recent {
		explanation := result.Explanation
		if runes := []rune(explanation); len(runes) > maxExplanationLength {
			explanation = string(runes[:maxExplanationLength-3]) + "..."
		}
		report.Recent = append(report.Recent, RecentMatch{
			LineID:      result.LineID,
			Status:      result.Status,
			Method:      result.Method,
			Confidence:  result.Confidence,
			Explanation: explanation,
			CreatedAt:   result.CreatedAt,
		})
	}

	r.evaluate(report)
	return report, nil
}

// evaluate derives the overall state and the human-readable guidance. One
// breached bound is a warning, two or more is a failure.
func (r *Reporter) evaluate(report *Report) {
	if report.TotalMatches < r.config.MinSampleSize {
		report.OverallState = StateInsufficientData
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("only %d matches in the last %d days; at least %d needed for a verdict", report.TotalMatches, report.WindowDays, r.config.MinSampleSize))
		return
	}

	var breaches int

	if report.AutoMatchRate < r.config.MinAutoMatchRate {
		breaches++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("auto-match rate %.0f%% is below the healthy floor of %.0f%%", report.AutoMatchRate*100, r.config.MinAutoMatchRate*100))
		report.Recommendations = append(report.Recommendations,
			"check supplier identifier quality; low auto-match usually means missing or malformed GTIN/LWIN values")
	}

	if report.SuggestedRate > r.config.MaxSuggestedRate {
		breaches++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("suggested rate %.0f%% is above the healthy ceiling of %.0f%%", report.SuggestedRate*100, r.config.MaxSuggestedRate*100))
		report.Recommendations = append(report.Recommendations,
			"a high suggestion backlog means reviewers are the bottleneck; consider enriching the catalog or raising identifier coverage")
	}

	if report.AvgAutoConfidence < r.config.MinAvgConfidence {
		breaches++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("average auto-match confidence %.2f is below the healthy floor of %.2f", report.AvgAutoConfidence, r.config.MinAvgConfidence))
		report.Recommendations = append(report.Recommendations,
			"auto matches are being accepted close to the threshold; review the recent list for borderline decisions")
	}

	if report.AutoCreateRate > r.config.MaxAutoCreateRate {
		breaches++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("auto-create rate %.0f%% is above the healthy ceiling of %.0f%%", report.AutoCreateRate*100, r.config.MaxAutoCreateRate*100))
		report.Recommendations = append(report.Recommendations,
			"the catalog is growing mostly from unmatched lines; audit recently auto-created products for duplicates")
	}

	switch {
	case breaches == 0:
		report.OverallState = StatePass
	case breaches == 1:
		report.OverallState = StateWarn
	default:
		report.OverallState = StateFail
	}
}

// VerifyFieldDiscipline scans the serialized report for forbidden commercial
// terms. The report carries identity and quality data only; any hit is a
// defect in this service.
func VerifyFieldDiscipline(report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if winedb.IsForbiddenKey(string(data)) {
		return fmt.Errorf("health report contains forbidden commercial terms")
	}
	return nil
}
