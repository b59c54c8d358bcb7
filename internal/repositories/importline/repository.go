package importline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/winefeed/vine/pkg/database"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// Repository handles import line persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new import line repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const lineColumns = "id, tenant_id, import_id, line_number, gtin, lwin, producer_sku, issuer_id, name, producer, vintage, country, region, volume_ml, pack_type, units_per_case, abv_percent, source_type, source_id, created_at"

// Create stores a single line. Lines are immutable after this point.
func (r *Repository) Create(ctx context.Context, line *models.Line) (*models.Line, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.Create")
	defer span.End()

	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	line.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("import_lines")
	sb.Cols("id", "tenant_id", "import_id", "line_number", "gtin", "lwin", "producer_sku", "issuer_id", "name", "producer", "vintage", "country", "region", "volume_ml", "pack_type", "units_per_case", "abv_percent", "source_type", "source_id", "created_at")
	sb.Values(line.ID, line.TenantID, line.ImportID, line.LineNumber, line.GTIN, line.LWIN, line.ProducerSKU, line.IssuerID, line.Name, line.Producer, line.Vintage, line.Country, line.Region, line.VolumeML, line.PackType, line.UnitsPerCase, line.ABVPercent, line.SourceType, line.SourceID, line.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"line_id": line.ID}).Error("Failed to create import line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create import line")
	}

	return line, nil
}

// CreateBatch stores multiple lines from one import efficiently.
func (r *Repository) CreateBatch(ctx context.Context, lines []*models.Line) error {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.CreateBatch")
	defer span.End()

	if len(lines) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("import_lines")
	sb.Cols("id", "tenant_id", "import_id", "line_number", "gtin", "lwin", "producer_sku", "issuer_id", "name", "producer", "vintage", "country", "region", "volume_ml", "pack_type", "units_per_case", "abv_percent", "source_type", "source_id", "created_at")

	for _, line := range lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.CreatedAt = now
		sb.Values(line.ID, line.TenantID, line.ImportID, line.LineNumber, line.GTIN, line.LWIN, line.ProducerSKU, line.IssuerID, line.Name, line.Producer, line.Vintage, line.Country, line.Region, line.VolumeML, line.PackType, line.UnitsPerCase, line.ABVPercent, line.SourceType, line.SourceID, line.CreatedAt)
	}

	query, args := sb.Build()
	query += " ON CONFLICT (tenant_id, import_id, line_number) DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create import lines batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create import lines")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(lines)}).Debug("Created import lines batch")
	return nil
}

// Get retrieves a line by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.Line, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(lineColumns)
	sb.From("import_lines")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var line models.Line
	if err := r.db.GetContext(ctx, &line, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("import line %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get import line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get import line")
	}

	return &line, nil
}

// ListByImport retrieves all lines of one import in line order.
func (r *Repository) ListByImport(ctx context.Context, tenantID string, importID string) ([]models.Line, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.ListByImport")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(lineColumns)
	sb.From("import_lines")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("import_id", importID),
	)
	sb.OrderBy("line_number ASC")

	query, args := sb.Build()
	var lines []models.Line
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list import lines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list import lines")
	}

	return lines, nil
}

// ImportRef identifies one import of one tenant.
type ImportRef struct {
	TenantID string `db:"tenant_id"`
	ImportID string `db:"import_id"`
}

// ListRecentImports returns the distinct imports with lines created after the
// cutoff, newest first.
func (r *Repository) ListRecentImports(ctx context.Context, since time.Time) ([]ImportRef, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.ListRecentImports")
	defer span.End()

	query := `
		SELECT tenant_id, import_id
		FROM import_lines
		WHERE created_at >= $1
		GROUP BY tenant_id, import_id
		ORDER BY MAX(created_at) DESC
	`

	var refs []ImportRef
	if err := r.db.SelectContext(ctx, &refs, query, since); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list recent imports")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list recent imports")
	}

	return refs, nil
}

// IdentifierCoverage summarizes which identifier kinds the lines in a window
// carried.
type IdentifierCoverage struct {
	Total    int `db:"total"`
	WithGTIN int `db:"with_gtin"`
	WithLWIN int `db:"with_lwin"`
	WithSKU  int `db:"with_sku"`
}

// GetIdentifierCoverage counts identifier presence on lines created after the
// cutoff.
func (r *Repository) GetIdentifierCoverage(ctx context.Context, tenantID string, since time.Time) (*IdentifierCoverage, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.GetIdentifierCoverage")
	defer span.End()

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE gtin IS NOT NULL AND gtin <> '') AS with_gtin,
			COUNT(*) FILTER (WHERE lwin IS NOT NULL AND lwin <> '') AS with_lwin,
			COUNT(*) FILTER (WHERE producer_sku IS NOT NULL AND producer_sku <> '') AS with_sku
		FROM import_lines
		WHERE tenant_id = $1
		AND created_at >= $2
	`

	var coverage IdentifierCoverage
	if err := r.db.GetContext(ctx, &coverage, query, tenantID, since); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get identifier coverage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get identifier coverage")
	}

	return &coverage, nil
}

// AuditRow is a snapshot of a line, its latest match and the linked product,
// read in one query so the audit sees a consistent picture per line.
type AuditRow struct {
	Line    models.Line
	Result  models.MatchResult
	Product *models.CatalogProduct
}

type auditScanRow struct {
	models.Line

	ResultID         string             `db:"result_id"`
	Status           models.MatchStatus `db:"status"`
	Method           models.MatchMethod `db:"method"`
	Confidence       float64            `db:"confidence"`
	MatchedProductID *string            `db:"matched_product_id"`
	Explanation      string             `db:"explanation"`
	ResultCreatedAt  time.Time          `db:"result_created_at"`

	ProductID           *string  `db:"product_id"`
	ProductName         *string  `db:"product_name"`
	ProductProducer     *string  `db:"product_producer"`
	ProductVintage      *int     `db:"product_vintage"`
	ProductCountry      *string  `db:"product_country"`
	ProductRegion       *string  `db:"product_region"`
	ProductVolumeML     *int     `db:"product_volume_ml"`
	ProductPackType     *string  `db:"product_pack_type"`
	ProductUnitsPerCase *int     `db:"product_units_per_case"`
	ProductABVPercent   *float64 `db:"product_abv_percent"`
	ProductAutoCreated  *bool    `db:"product_auto_created"`
}

// ListAutoMatchedForAudit returns every line of the import whose latest match
// status is one the engine reached without human review, joined with the
// product it points at.
func (r *Repository) ListAutoMatchedForAudit(ctx context.Context, tenantID string, importID string) ([]AuditRow, error) {
	ctx, span := tracing.StartSpan(ctx, "importline.Repository.ListAutoMatchedForAudit")
	defer span.End()

	query := `
		SELECT
			l.id, l.tenant_id, l.import_id, l.line_number,
			l.gtin, l.lwin, l.producer_sku, l.issuer_id,
			l.name, l.producer, l.vintage, l.country, l.region,
			l.volume_ml, l.pack_type, l.units_per_case, l.abv_percent,
			l.source_type, l.source_id, l.created_at,
			m.id AS result_id, m.status, m.method, m.confidence,
			m.matched_product_id, m.explanation, m.created_at AS result_created_at,
			p.id AS product_id, p.name AS product_name, p.producer AS product_producer,
			p.vintage AS product_vintage, p.country AS product_country, p.region AS product_region,
			p.volume_ml AS product_volume_ml, p.pack_type AS product_pack_type,
			p.units_per_case AS product_units_per_case, p.abv_percent AS product_abv_percent,
			p.auto_created AS product_auto_created
		FROM import_lines l
		JOIN match_results m ON m.line_id = l.id AND m.is_latest = TRUE
		LEFT JOIN catalog_products p ON p.id = m.matched_product_id
		WHERE l.tenant_id = $1
		AND l.import_id = $2
		AND m.status IN ($3, $4, $5)
		ORDER BY l.line_number ASC
	`

	var rows []auditScanRow
	err := r.db.SelectContext(ctx, &rows, query, tenantID, importID,
		models.MatchStatusAutoMatch, models.MatchStatusAutoMatchWithGuards, models.MatchStatusSamplingReview)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list lines for audit")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list lines for audit")
	}

	audit := make([]AuditRow, 0, len(rows))
	for _, row := range rows {
		ar := AuditRow{
			Line: row.Line,
			Result: models.MatchResult{
				ID:               row.ResultID,
				TenantID:         row.Line.TenantID,
				LineID:           row.Line.ID,
				Status:           row.Status,
				Method:           row.Method,
				Confidence:       row.Confidence,
				MatchedProductID: row.MatchedProductID,
				Explanation:      row.Explanation,
				IsLatest:         true,
				CreatedAt:        row.ResultCreatedAt,
			},
		}
		if row.ProductID != nil {
			ar.Product = &models.CatalogProduct{
				ID:           *row.ProductID,
				TenantID:     row.Line.TenantID,
				Name:         deref(row.ProductName),
				Producer:     deref(row.ProductProducer),
				Vintage:      row.ProductVintage,
				Country:      deref(row.ProductCountry),
				Region:       deref(row.ProductRegion),
				VolumeML:     row.ProductVolumeML,
				PackType:     deref(row.ProductPackType),
				UnitsPerCase: row.ProductUnitsPerCase,
				ABVPercent:   row.ProductABVPercent,
				AutoCreated:  row.ProductAutoCreated != nil && *row.ProductAutoCreated,
			}
		}
		audit = append(audit, ar)
	}

	return audit, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
