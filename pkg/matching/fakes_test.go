package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/winefeed/vine/internal/repositories/importline"
	"github.com/winefeed/vine/internal/repositories/matchresult"
	"github.com/winefeed/vine/internal/repositories/violation"
	"github.com/winefeed/vine/pkg/models"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// fakeProductRepo implements repositories.CatalogProductRepo with per-method
// hooks. Unset hooks return empty results.
type fakeProductRepo struct {
	createFn         func(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, error)
	insertIfAbsentFn func(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error)
	getFn            func(ctx context.Context, tenantID string, id string) (*models.CatalogProduct, error)
	byGTINFn         func(ctx context.Context, tenantID string, gtin string) (*models.CatalogProduct, error)
	byLWINFn         func(ctx context.Context, tenantID string, lwin string) (*models.CatalogProduct, error)
	bySKUFn          func(ctx context.Context, tenantID string, sku string, issuerID string) (*models.CatalogProduct, error)
	searchFn         func(ctx context.Context, tenantID string, canonical string, limit int) ([]models.CatalogProduct, error)
	countFn          func(ctx context.Context, tenantID string, since time.Time) (int, error)
}

func (f *fakeProductRepo) Create(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, error) {
	if f.createFn != nil {
		return f.createFn(ctx, tenantID, req)
	}
	return nil, nil
}

func (f *fakeProductRepo) InsertIfAbsent(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error) {
	if f.insertIfAbsentFn != nil {
		return f.insertIfAbsentFn(ctx, tenantID, req)
	}
	return nil, false, nil
}

func (f *fakeProductRepo) Get(ctx context.Context, tenantID string, id string) (*models.CatalogProduct, error) {
	if f.getFn != nil {
		return f.getFn(ctx, tenantID, id)
	}
	return nil, nil
}

func (f *fakeProductRepo) LookupByGTIN(ctx context.Context, tenantID string, gtin string) (*models.CatalogProduct, error) {
	if f.byGTINFn != nil {
		return f.byGTINFn(ctx, tenantID, gtin)
	}
	return nil, nil
}

func (f *fakeProductRepo) LookupByLWIN(ctx context.Context, tenantID string, lwin string) (*models.CatalogProduct, error) {
	if f.byLWINFn != nil {
		return f.byLWINFn(ctx, tenantID, lwin)
	}
	return nil, nil
}

func (f *fakeProductRepo) LookupBySKU(ctx context.Context, tenantID string, sku string, issuerID string) (*models.CatalogProduct, error) {
	if f.bySKUFn != nil {
		return f.bySKUFn(ctx, tenantID, sku, issuerID)
	}
	return nil, nil
}

func (f *fakeProductRepo) SearchCandidates(ctx context.Context, tenantID string, canonical string, limit int) ([]models.CatalogProduct, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, tenantID, canonical, limit)
	}
	return nil, nil
}

func (f *fakeProductRepo) CountAutoCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, tenantID, since)
	}
	return 0, nil
}

// fakeLineRepo implements repositories.ImportLineRepo over an in-memory map.
type fakeLineRepo struct {
	mu    sync.Mutex
	lines map[string]*models.Line
}

func newFakeLineRepo() *fakeLineRepo {
	return &fakeLineRepo{lines: make(map[string]*models.Line)}
}

func (f *fakeLineRepo) Create(ctx context.Context, line *models.Line) (*models.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[line.ID] = line
	return line, nil
}

func (f *fakeLineRepo) CreateBatch(ctx context.Context, lines []*models.Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range lines {
		if f.findByNumber(line.TenantID, line.ImportID, line.LineNumber) == nil {
			f.lines[line.ID] = line
		}
	}
	return nil
}

func (f *fakeLineRepo) findByNumber(tenantID, importID string, lineNumber int) *models.Line {
	for _, line := range f.lines {
		if line.TenantID == tenantID && line.ImportID == importID && line.LineNumber == lineNumber {
			return line
		}
	}
	return nil
}

func (f *fakeLineRepo) Get(ctx context.Context, tenantID string, id string) (*models.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[id]
	if !ok || line.TenantID != tenantID {
		return nil, fmt.Errorf("line %s not found", id)
	}
	return line, nil
}

func (f *fakeLineRepo) ListByImport(ctx context.Context, tenantID string, importID string) ([]models.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Line
	for _, line := range f.lines {
		if line.TenantID == tenantID && line.ImportID == importID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (f *fakeLineRepo) ListRecentImports(ctx context.Context, since time.Time) ([]importline.ImportRef, error) {
	return nil, nil
}

func (f *fakeLineRepo) GetIdentifierCoverage(ctx context.Context, tenantID string, since time.Time) (*importline.IdentifierCoverage, error) {
	return &importline.IdentifierCoverage{}, nil
}

func (f *fakeLineRepo) ListAutoMatchedForAudit(ctx context.Context, tenantID string, importID string) ([]importline.AuditRow, error) {
	return nil, nil
}

// fakeResultRepo implements repositories.MatchResultRepo append-only.
type fakeResultRepo struct {
	mu      sync.Mutex
	results []*models.MatchResult
	// appendErr fails every Append when set.
	appendErr error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{}
}

func (f *fakeResultRepo) Append(ctx context.Context, result *models.MatchResult) (*models.MatchResult, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *result
	stored.ID = fmt.Sprintf("result-%d", len(f.results)+1)
	stored.IsLatest = true
	stored.CreatedAt = time.Now().UTC()
	for _, prev := range f.results {
		if prev.LineID == stored.LineID {
			prev.IsLatest = false
		}
	}
	f.results = append(f.results, &stored)
	return &stored, nil
}

func (f *fakeResultRepo) Get(ctx context.Context, tenantID string, id string) (*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, result := range f.results {
		if result.ID == id && result.TenantID == tenantID {
			return result, nil
		}
	}
	return nil, fmt.Errorf("result %s not found", id)
}

func (f *fakeResultRepo) GetLatestByLine(ctx context.Context, tenantID string, lineID string) (*models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, result := range f.results {
		if result.LineID == lineID && result.TenantID == tenantID && result.IsLatest {
			return result, nil
		}
	}
	return nil, nil
}

func (f *fakeResultRepo) ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MatchResult
	for _, result := range f.results {
		if result.LineID == lineID && result.TenantID == tenantID {
			out = append(out, *result)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListByStatus(ctx context.Context, tenantID string, status models.MatchStatus, limit int) ([]models.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MatchResult
	for _, result := range f.results {
		if result.TenantID == tenantID && result.Status == status && result.IsLatest {
			out = append(out, *result)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.MatchResult, error) {
	return nil, nil
}

func (f *fakeResultRepo) CountByStatusSince(ctx context.Context, tenantID string, since time.Time) ([]matchresult.StatusCount, error) {
	return nil, nil
}

func (f *fakeResultRepo) latestFor(lineID string) *models.MatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, result := range f.results {
		if result.LineID == lineID && result.IsLatest {
			return result
		}
	}
	return nil
}

// fakeViolationRepo implements repositories.ViolationRepo.
type fakeViolationRepo struct {
	mu         sync.Mutex
	violations []models.GuardrailViolation
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{}
}

func (f *fakeViolationRepo) CreateBatch(ctx context.Context, violations []models.GuardrailViolation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.violations = append(f.violations, violations...)
	return nil
}

func (f *fakeViolationRepo) ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.GuardrailViolation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GuardrailViolation
	for _, v := range f.violations {
		if v.TenantID == tenantID && v.LineID == lineID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeViolationRepo) ListByImport(ctx context.Context, tenantID string, importID string) ([]models.GuardrailViolation, error) {
	return nil, nil
}

func (f *fakeViolationRepo) CountByTypeSince(ctx context.Context, tenantID string, since time.Time) ([]violation.TypeCount, error) {
	return nil, nil
}
