// Package repositories declares the typed persistence interfaces the
// services are wired against. The concrete implementations live in the
// subpackages; tests substitute fakes.
package repositories

import (
	"context"
	"time"

	"github.com/winefeed/vine/internal/repositories/importline"
	"github.com/winefeed/vine/internal/repositories/matchresult"
	"github.com/winefeed/vine/internal/repositories/violation"
	"github.com/winefeed/vine/pkg/models"
)

// CatalogProductRepo is the catalog access surface of the matcher.
type CatalogProductRepo interface {
	Create(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, error)
	InsertIfAbsent(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error)
	Get(ctx context.Context, tenantID string, id string) (*models.CatalogProduct, error)
	LookupByGTIN(ctx context.Context, tenantID string, gtin string) (*models.CatalogProduct, error)
	LookupByLWIN(ctx context.Context, tenantID string, lwin string) (*models.CatalogProduct, error)
	LookupBySKU(ctx context.Context, tenantID string, sku string, issuerID string) (*models.CatalogProduct, error)
	SearchCandidates(ctx context.Context, tenantID string, canonical string, limit int) ([]models.CatalogProduct, error)
	CountAutoCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// ImportLineRepo is the line access surface of the matcher and the auditor.
type ImportLineRepo interface {
	Create(ctx context.Context, line *models.Line) (*models.Line, error)
	CreateBatch(ctx context.Context, lines []*models.Line) error
	Get(ctx context.Context, tenantID string, id string) (*models.Line, error)
	ListByImport(ctx context.Context, tenantID string, importID string) ([]models.Line, error)
	ListRecentImports(ctx context.Context, since time.Time) ([]importline.ImportRef, error)
	GetIdentifierCoverage(ctx context.Context, tenantID string, since time.Time) (*importline.IdentifierCoverage, error)
	ListAutoMatchedForAudit(ctx context.Context, tenantID string, importID string) ([]importline.AuditRow, error)
}

// MatchResultRepo is the decision record surface.
type MatchResultRepo interface {
	Append(ctx context.Context, result *models.MatchResult) (*models.MatchResult, error)
	Get(ctx context.Context, tenantID string, id string) (*models.MatchResult, error)
	GetLatestByLine(ctx context.Context, tenantID string, lineID string) (*models.MatchResult, error)
	ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.MatchResult, error)
	ListByStatus(ctx context.Context, tenantID string, status models.MatchStatus, limit int) ([]models.MatchResult, error)
	ListRecent(ctx context.Context, tenantID string, since time.Time, limit int) ([]models.MatchResult, error)
	CountByStatusSince(ctx context.Context, tenantID string, since time.Time) ([]matchresult.StatusCount, error)
}

// ViolationRepo is the guardrail violation record surface.
type ViolationRepo interface {
	CreateBatch(ctx context.Context, violations []models.GuardrailViolation) error
	ListByLine(ctx context.Context, tenantID string, lineID string) ([]models.GuardrailViolation, error)
	ListByImport(ctx context.Context, tenantID string, importID string) ([]models.GuardrailViolation, error)
	CountByTypeSince(ctx context.Context, tenantID string, since time.Time) ([]violation.TypeCount, error)
}
