package catalogproduct

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
	"github.com/winefeed/vine/pkg/normalizers"
	"github.com/winefeed/vine/pkg/tracing"
)

// Repository handles catalog product persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new catalog product repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const productColumns = "id, tenant_id, gtin, lwin, producer_sku, issuer_id, name, producer, vintage, country, region, volume_ml, pack_type, units_per_case, abv_percent, auto_created, created_at, updated_at"

// Create creates a new catalog product
func (r *Repository) Create(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.Create")
	defer span.End()

	product := requestToProduct(tenantID, req)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("catalog_products")
	sb.Cols("id", "tenant_id", "gtin", "lwin", "producer_sku", "issuer_id", "name", "producer", "vintage", "country", "region", "volume_ml", "pack_type", "units_per_case", "abv_percent", "canonical_text", "auto_created", "created_at", "updated_at")
	sb.Values(product.ID, product.TenantID, product.GTIN, product.LWIN, product.ProducerSKU, product.IssuerID, product.Name, product.Producer, product.Vintage, product.Country, product.Region, product.VolumeML, product.PackType, product.UnitsPerCase, product.ABVPercent, canonicalText(product), product.AutoCreated, product.CreatedAt, product.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": product.ID}).Error("Failed to create catalog product")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create catalog product")
	}

	return product, nil
}

// InsertIfAbsent inserts a product keyed on (producer, name, vintage) or
// returns the existing row. Concurrent inserts of the same key converge on a
// single product: the unique index absorbs the duplicate and the reselect
// returns the winner. Vintage is compared NULL-safe so two non-vintage rows
// collide.
func (r *Repository) InsertIfAbsent(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.InsertIfAbsent")
	defer span.End()

	product := requestToProduct(tenantID, req)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("catalog_products")
	sb.Cols("id", "tenant_id", "gtin", "lwin", "producer_sku", "issuer_id", "name", "producer", "vintage", "country", "region", "volume_ml", "pack_type", "units_per_case", "abv_percent", "canonical_text", "auto_created", "created_at", "updated_at")
	sb.Values(product.ID, product.TenantID, product.GTIN, product.LWIN, product.ProducerSKU, product.IssuerID, product.Name, product.Producer, product.Vintage, product.Country, product.Region, product.VolumeML, product.PackType, product.UnitsPerCase, product.ABVPercent, canonicalText(product), product.AutoCreated, product.CreatedAt, product.UpdatedAt)

	query, args := sb.Build()
	// matches the uq_catalog_products_line unique index (COALESCE on vintage)
	query += " ON CONFLICT (tenant_id, producer, name, COALESCE(vintage, 0)) DO NOTHING"

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert catalog product")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert catalog product")
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return product, true, nil
	}

	existing, err := r.getByLineKey(ctx, tenantID, product.Producer, product.Name, product.Vintage)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// should not happen: the conflict row vanished between insert and reselect
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "catalog product conflict row not found")
	}
	return existing, false, nil
}

func (r *Repository) getByLineKey(ctx context.Context, tenantID, producer, name string, vintage *int) (*models.CatalogProduct, error) {
	query := `
		SELECT ` + productColumns + `
		FROM catalog_products
		WHERE tenant_id = $1
		AND producer = $2
		AND name = $3
		AND vintage IS NOT DISTINCT FROM $4
		LIMIT 1
	`

	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, tenantID, producer, name, vintage); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get catalog product by line key")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog product")
	}

	return &product, nil
}

// Get retrieves a catalog product by ID
func (r *Repository) Get(ctx context.Context, tenantID string, id string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns)
	sb.From("catalog_products")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("catalog product %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get catalog product")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get catalog product")
	}

	return &product, nil
}

// LookupByGTIN finds the product carrying a GTIN. Returns nil when no product
// has it.
func (r *Repository) LookupByGTIN(ctx context.Context, tenantID string, gtin string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.LookupByGTIN")
	defer span.End()

	return r.lookupByIdentifier(ctx, tenantID, "gtin", gtin)
}

// LookupByLWIN finds the product carrying an LWIN code. Returns nil when no
// product has it.
func (r *Repository) LookupByLWIN(ctx context.Context, tenantID string, lwin string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.LookupByLWIN")
	defer span.End()

	return r.lookupByIdentifier(ctx, tenantID, "lwin", lwin)
}

func (r *Repository) lookupByIdentifier(ctx context.Context, tenantID, column, value string) (*models.CatalogProduct, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM catalog_products
		WHERE tenant_id = $1
		AND %s = $2
		LIMIT 1
	`, productColumns, column)

	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, tenantID, value); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"column": column}).Error("Failed to look up catalog product by identifier")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up catalog product")
	}

	return &product, nil
}

// LookupBySKU finds the product carrying a producer SKU for a given issuer.
// Producer SKUs are only unique per issuer, so the issuer is part of the key.
func (r *Repository) LookupBySKU(ctx context.Context, tenantID string, sku string, issuerID string) (*models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.LookupBySKU")
	defer span.End()

	query := `
		SELECT ` + productColumns + `
		FROM catalog_products
		WHERE tenant_id = $1
		AND producer_sku = $2
		AND issuer_id = $3
		LIMIT 1
	`

	var product models.CatalogProduct
	if err := r.db.GetContext(ctx, &product, query, tenantID, sku, issuerID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up catalog product by sku")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up catalog product")
	}

	return &product, nil
}

// SearchCandidates returns catalog products ranked by trigram similarity of
// their canonical text against the given canonical string.
func (r *Repository) SearchCandidates(ctx context.Context, tenantID string, canonical string, limit int) ([]models.CatalogProduct, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.SearchCandidates")
	defer span.End()

	if limit < 1 || limit > 50 {
		limit = 10
	}

	query := `
		SELECT ` + productColumns + `
		FROM catalog_products
		WHERE tenant_id = $1
		AND similarity(canonical_text, $2) > 0.2
		ORDER BY similarity(canonical_text, $2) DESC
		LIMIT $3
	`

	var products []models.CatalogProduct
	if err := r.db.SelectContext(ctx, &products, query, tenantID, canonical, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search catalog candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search catalog candidates")
	}

	return products, nil
}

// CountAutoCreatedSince counts products minted by the matcher after a cutoff.
func (r *Repository) CountAutoCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "catalogproduct.Repository.CountAutoCreatedSince")
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM catalog_products
		WHERE tenant_id = $1
		AND auto_created = TRUE
		AND created_at >= $2
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, since); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count auto-created products")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count auto-created products")
	}

	return count, nil
}

func requestToProduct(tenantID string, req *models.CreateCatalogProductRequest) *models.CatalogProduct {
	now := time.Now().UTC()
	return &models.CatalogProduct{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		GTIN:         req.GTIN,
		LWIN:         req.LWIN,
		ProducerSKU:  req.ProducerSKU,
		IssuerID:     req.IssuerID,
		Name:         req.Name,
		Producer:     req.Producer,
		Vintage:      req.Vintage,
		Country:      req.Country,
		Region:       req.Region,
		VolumeML:     req.VolumeML,
		PackType:     req.PackType,
		UnitsPerCase: req.UnitsPerCase,
		ABVPercent:   req.ABVPercent,
		AutoCreated:  req.AutoCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func canonicalText(p *models.CatalogProduct) string {
	return normalizers.Canonical(p.Producer, p.Name, p.Vintage, p.VolumeML)
}
