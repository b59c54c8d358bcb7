package matching

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/normalizers"
	"github.com/winefeed/vine/pkg/tracing"
)

// Resolution is an exact identifier hit. Confidence is always 1.0; the
// guardrail validator still runs before the hit is accepted.
type Resolution struct {
	Product *models.CatalogProduct
	Method  models.MatchMethod
}

// defaultSKUChain is the normalizer chain applied to producer SKUs before
// lookup when no deployment-specific chain is configured.
var defaultSKUChain = []string{"trim"}

// Resolver performs exact identifier lookups in priority order GTIN → LWIN →
// SKU. Read-only.
type Resolver struct {
	products repositories.CatalogProductRepo
	skuChain []string
	logger   ectologger.Logger
}

// NewResolver creates a new identifier resolver
func NewResolver(products repositories.CatalogProductRepo, logger ectologger.Logger) *Resolver {
	return &Resolver{
		products: products,
		skuChain: defaultSKUChain,
		logger:   logger,
	}
}

// WithSKUNormalizers replaces the named normalizer chain applied to producer
// SKUs before lookup. Supplier feeds disagree on SKU casing and padding, so
// the chain is deployment configuration resolved by name at call time.
func (r *Resolver) WithSKUNormalizers(chain ...string) *Resolver {
	if len(chain) > 0 {
		r.skuChain = chain
	}
	return r
}

// Resolve attempts each identifier lookup in priority order and returns the
// first hit, or nil when no identifier resolves. The SKU branch is skipped
// entirely without an issuer id: a SKU is only unique within its issuer's
// namespace and must not match against another supplier's SKU space.
func (r *Resolver) Resolve(ctx context.Context, line *models.Line) (*Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Resolver.Resolve")
	defer span.End()

	if line.GTIN != nil {
		if gtin := normalizers.NormalizeGTIN(*line.GTIN); gtin != "" {
			product, err := r.products.LookupByGTIN(ctx, line.TenantID, gtin)
			if err != nil {
				return nil, err
			}
			if product != nil {
				r.logger.WithContext(ctx).WithFields(map[string]any{"line_id": line.ID, "product_id": product.ID}).Debug("Resolved line by GTIN")
				return &Resolution{Product: product, Method: models.MatchMethodGTINExact}, nil
			}
		}
	}

	if line.LWIN != nil {
		if lwin := normalizers.NormalizeLWIN(*line.LWIN); lwin != "" {
			product, err := r.products.LookupByLWIN(ctx, line.TenantID, lwin)
			if err != nil {
				return nil, err
			}
			if product != nil {
				r.logger.WithContext(ctx).WithFields(map[string]any{"line_id": line.ID, "product_id": product.ID}).Debug("Resolved line by LWIN")
				return &Resolution{Product: product, Method: models.MatchMethodLWINExact}, nil
			}
		}
	}

	if line.ProducerSKU != nil && line.IssuerID != nil && *line.IssuerID != "" {
		if sku := normalizers.ApplyChain(*line.ProducerSKU, r.skuChain...); sku != "" {
			product, err := r.products.LookupBySKU(ctx, line.TenantID, sku, *line.IssuerID)
			if err != nil {
				return nil, err
			}
			if product != nil {
				r.logger.WithContext(ctx).WithFields(map[string]any{"line_id": line.ID, "product_id": product.ID}).Debug("Resolved line by SKU")
				return &Resolution{Product: product, Method: models.MatchMethodSKUExact}, nil
			}
		}
	}

	return nil, nil
}
