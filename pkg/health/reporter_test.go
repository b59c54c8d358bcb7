package health

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/winefeed/vine/internal/repositories/importline"
	"github.com/winefeed/vine/internal/repositories/matchresult"
	"github.com/winefeed/vine/pkg/models"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// fakeResultSource implements repositories.MatchResultRepo for the read paths
// the reporter uses.
type fakeResultSource struct {
	counts []matchresult.StatusCount
	recent []models.MatchResult
}

func (f *fakeResultSource) CountByStatusSince(ctx context.Context, tenantID string, since time.Time) ([]matchresult.StatusCount, error) {
	return f.counts, nil
}

func (f *fakeResultSource) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.MatchResult, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeResultSource) Append(ctx context.Context, result *models.MatchResult) (*models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultSource) Get(ctx context.Context, tenantID string, id string) (*models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultSource) GetLatestByLine(ctx context.Context, tenantID string, lineID string) (*models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultSource) ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultSource) ListByStatus(ctx context.Context, tenantID string, status models.MatchStatus, limit int) ([]models.MatchResult, error) {
	return nil, nil
}

// fakeLineSource implements repositories.ImportLineRepo for identifier
// coverage.
type fakeLineSource struct {
	coverage importline.IdentifierCoverage
}

func (f *fakeLineSource) GetIdentifierCoverage(ctx context.Context, tenantID string, since time.Time) (*importline.IdentifierCoverage, error) {
	coverage := f.coverage
	return &coverage, nil
}

func (f *fakeLineSource) Create(ctx context.Context, line *models.Line) (*models.Line, error) {
	return nil, nil
}

func (f *fakeLineSource) CreateBatch(ctx context.Context, lines []*models.Line) error { return nil }

func (f *fakeLineSource) Get(ctx context.Context, tenantID string, id string) (*models.Line, error) {
	return nil, nil
}

func (f *fakeLineSource) ListByImport(ctx context.Context, tenantID string, importID string) ([]models.Line, error) {
	return nil, nil
}

func (f *fakeLineSource) ListRecentImports(ctx context.Context, since time.Time) ([]importline.ImportRef, error) {
	return nil, nil
}

func (f *fakeLineSource) ListAutoMatchedForAudit(ctx context.Context, tenantID string, importID string) ([]importline.AuditRow, error) {
	return nil, nil
}

// fakeProductSource implements repositories.CatalogProductRepo for the
// auto-create count.
type fakeProductSource struct {
	autoCreated int
}

func (f *fakeProductSource) CountAutoCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	return f.autoCreated, nil
}

func (f *fakeProductSource) Create(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, error) {
	return nil, nil
}

func (f *fakeProductSource) InsertIfAbsent(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error) {
	return nil, false, nil
}

func (f *fakeProductSource) Get(ctx context.Context, tenantID string, id string) (*models.CatalogProduct, error) {
	return nil, nil
}

func (f *fakeProductSource) LookupByGTIN(ctx context.Context, tenantID string, gtin string) (*models.CatalogProduct, error) {
	return nil, nil
}

func (f *fakeProductSource) LookupByLWIN(ctx context.Context, tenantID string, lwin string) (*models.CatalogProduct, error) {
	return nil, nil
}

func (f *fakeProductSource) LookupBySKU(ctx context.Context, tenantID string, sku string, issuerID string) (*models.CatalogProduct, error) {
	return nil, nil
}

func (f *fakeProductSource) SearchCandidates(ctx context.Context, tenantID string, canonical string, limit int) ([]models.CatalogProduct, error) {
	return nil, nil
}

func newReporter(results *fakeResultSource, products *fakeProductSource, coverage importline.IdentifierCoverage) *Reporter {
	return NewReporter(results, &fakeLineSource{coverage: coverage}, products, DefaultReporterConfig(), testLogger())
}

func healthyCounts() []matchresult.StatusCount {
	return []matchresult.StatusCount{
		{Status: models.MatchStatusAutoMatch, Count: 40, AvgConfidence: 0.97},
		{Status: models.MatchStatusAutoMatchWithGuards, Count: 10, AvgConfidence: 0.88},
		{Status: models.MatchStatusSuggested, Count: 30},
		{Status: models.MatchStatusNoMatch, Count: 20},
	}
}

func TestReporter_Pass(t *testing.T) {
	reporter := newReporter(
		&fakeResultSource{counts: healthyCounts()},
		&fakeProductSource{autoCreated: 10},
		importline.IdentifierCoverage{Total: 100, WithGTIN: 60, WithLWIN: 20, WithSKU: 5},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, StatePass, report.OverallState)
	assert.Equal(t, 100, report.TotalMatches)
	assert.InDelta(t, 0.50, report.AutoMatchRate, 0.001)
	assert.InDelta(t, 0.30, report.SuggestedRate, 0.001)
	assert.InDelta(t, 0.952, report.AvgAutoConfidence, 0.001, "auto confidence is weighted by status count")
	assert.InDelta(t, 0.10, report.AutoCreateRate, 0.001)
	assert.Empty(t, report.Warnings)

	assert.InDelta(t, 60.0, report.IdentifierCoverage.GTINPct, 0.001)
	assert.InDelta(t, 15.0, report.IdentifierCoverage.TextPct, 0.001)
}

func TestReporter_SampledDecisionsCountAsAuto(t *testing.T) {
	// a sampled decision is an automatic one diverted to a spot check; it must
	// not depress the auto-match rate
	reporter := newReporter(
		&fakeResultSource{counts: []matchresult.StatusCount{
			{Status: models.MatchStatusAutoMatch, Count: 8, AvgConfidence: 0.96},
			{Status: models.MatchStatusSamplingReview, Count: 4, AvgConfidence: 0.90},
		}},
		&fakeProductSource{},
		importline.IdentifierCoverage{Total: 12, WithGTIN: 12},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.AutoMatchRate, 0.001)
	assert.InDelta(t, 0.94, report.AvgAutoConfidence, 0.001)
	assert.Equal(t, StatePass, report.OverallState)
}

func TestReporter_InsufficientData(t *testing.T) {
	reporter := newReporter(
		&fakeResultSource{counts: []matchresult.StatusCount{
			{Status: models.MatchStatusAutoMatch, Count: 5, AvgConfidence: 0.95},
		}},
		&fakeProductSource{},
		importline.IdentifierCoverage{Total: 5, WithGTIN: 5},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, StateInsufficientData, report.OverallState)
	assert.NotEmpty(t, report.Warnings)
}

func TestReporter_SingleBreachWarns(t *testing.T) {
	// auto-match rate 20% is under the 30% floor; everything else healthy
	reporter := newReporter(
		&fakeResultSource{counts: []matchresult.StatusCount{
			{Status: models.MatchStatusAutoMatch, Count: 20, AvgConfidence: 0.95},
			{Status: models.MatchStatusSuggested, Count: 30},
			{Status: models.MatchStatusNoMatch, Count: 50},
		}},
		&fakeProductSource{autoCreated: 5},
		importline.IdentifierCoverage{Total: 100, WithGTIN: 30},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, StateWarn, report.OverallState)
	assert.Len(t, report.Warnings, 1)
	assert.Len(t, report.Recommendations, 1)
}

func TestReporter_TwoBreachesFail(t *testing.T) {
	// auto-match rate 10% under the floor AND suggested rate 70% over the
	// ceiling
	reporter := newReporter(
		&fakeResultSource{counts: []matchresult.StatusCount{
			{Status: models.MatchStatusAutoMatch, Count: 10, AvgConfidence: 0.95},
			{Status: models.MatchStatusSuggested, Count: 70},
			{Status: models.MatchStatusNoMatch, Count: 20},
		}},
		&fakeProductSource{autoCreated: 5},
		importline.IdentifierCoverage{Total: 100, WithGTIN: 10},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, StateFail, report.OverallState)
	assert.Len(t, report.Warnings, 2)
}

func TestReporter_TruncatesExplanations(t *testing.T) {
	// accented names make the cut point land mid-rune if truncation counts bytes
	long := strings.Repeat("château margaux grand cru classé ", 10)
	reporter := newReporter(
		&fakeResultSource{
			counts: healthyCounts(),
			recent: []models.MatchResult{
				{LineID: "line-1", Status: models.MatchStatusAutoMatch, Explanation: long},
			},
		},
		&fakeProductSource{},
		importline.IdentifierCoverage{Total: 100, WithGTIN: 50},
	)

	report, err := reporter.Report(context.Background(), "t1")

	require.NoError(t, err)
	require.Len(t, report.Recent, 1)
	truncated := report.Recent[0].Explanation
	assert.True(t, utf8.ValidString(truncated))
	assert.LessOrEqual(t, len([]rune(truncated)), 120)
	assert.True(t, strings.HasSuffix(truncated, "..."))
}

func TestVerifyFieldDiscipline(t *testing.T) {
	t.Run("clean report passes", func(t *testing.T) {
		report := &Report{
			OverallState: StatePass,
			Warnings:     []string{"auto-match rate 20% is below the healthy floor of 30%"},
		}
		assert.NoError(t, VerifyFieldDiscipline(report))
	})

	t.Run("commercial term anywhere in the payload fails", func(t *testing.T) {
		report := &Report{
			OverallState: StatePass,
			Recent: []RecentMatch{
				{LineID: "line-1", Explanation: "matched against the supplier price list"},
			},
		}
		assert.Error(t, VerifyFieldDiscipline(report))
	})
}
