package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winefeed/vine/pkg/models"
)

func TestResolver_GTINHit(t *testing.T) {
	product := &models.CatalogProduct{ID: "product-1"}
	var lookedUp string
	repo := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			lookedUp = gtin
			return product, nil
		},
	}
	resolver := NewResolver(repo, testLogger())

	line := &models.Line{TenantID: "t1", GTIN: strPtr("3245190000456")}
	resolution, err := resolver.Resolve(context.Background(), line)

	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, models.MatchMethodGTINExact, resolution.Method)
	assert.Equal(t, "product-1", resolution.Product.ID)
	assert.Equal(t, "03245190000456", lookedUp, "lookup must use the normalized GTIN")
}

func TestResolver_PriorityOrder(t *testing.T) {
	gtinProduct := &models.CatalogProduct{ID: "by-gtin"}
	lwinProduct := &models.CatalogProduct{ID: "by-lwin"}
	repo := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			return gtinProduct, nil
		},
		byLWINFn: func(ctx context.Context, tenantID, lwin string) (*models.CatalogProduct, error) {
			return lwinProduct, nil
		},
	}
	resolver := NewResolver(repo, testLogger())

	line := &models.Line{TenantID: "t1", GTIN: strPtr("3245190000456"), LWIN: strPtr("1234567")}
	resolution, err := resolver.Resolve(context.Background(), line)

	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, "by-gtin", resolution.Product.ID, "GTIN wins over LWIN")
}

func TestResolver_FallsThroughToLWIN(t *testing.T) {
	lwinProduct := &models.CatalogProduct{ID: "by-lwin"}
	repo := &fakeProductRepo{
		byLWINFn: func(ctx context.Context, tenantID, lwin string) (*models.CatalogProduct, error) {
			return lwinProduct, nil
		},
	}
	resolver := NewResolver(repo, testLogger())

	line := &models.Line{TenantID: "t1", GTIN: strPtr("3245190000456"), LWIN: strPtr("1234567")}
	resolution, err := resolver.Resolve(context.Background(), line)

	require.NoError(t, err)
	require.NotNil(t, resolution)
	assert.Equal(t, models.MatchMethodLWINExact, resolution.Method)
}

func TestResolver_SKURequiresIssuer(t *testing.T) {
	skuCalled := false
	repo := &fakeProductRepo{
		bySKUFn: func(ctx context.Context, tenantID, sku, issuerID string) (*models.CatalogProduct, error) {
			skuCalled = true
			return &models.CatalogProduct{ID: "by-sku"}, nil
		},
	}
	resolver := NewResolver(repo, testLogger())

	t.Run("no issuer skips the lookup entirely", func(t *testing.T) {
		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr("SKU-1")}
		resolution, err := resolver.Resolve(context.Background(), line)
		require.NoError(t, err)
		assert.Nil(t, resolution)
		assert.False(t, skuCalled)
	})

	t.Run("empty issuer skips the lookup entirely", func(t *testing.T) {
		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr("SKU-1"), IssuerID: strPtr("")}
		resolution, err := resolver.Resolve(context.Background(), line)
		require.NoError(t, err)
		assert.Nil(t, resolution)
		assert.False(t, skuCalled)
	})

	t.Run("issuer present resolves", func(t *testing.T) {
		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr("SKU-1"), IssuerID: strPtr("supplier-9")}
		resolution, err := resolver.Resolve(context.Background(), line)
		require.NoError(t, err)
		require.NotNil(t, resolution)
		assert.Equal(t, models.MatchMethodSKUExact, resolution.Method)
		assert.True(t, skuCalled)
	})
}

func TestResolver_SKUNormalizerChain(t *testing.T) {
	t.Run("default chain trims before lookup", func(t *testing.T) {
		var gotSKU string
		repo := &fakeProductRepo{
			bySKUFn: func(ctx context.Context, tenantID, sku, issuerID string) (*models.CatalogProduct, error) {
				gotSKU = sku
				return &models.CatalogProduct{ID: "by-sku"}, nil
			},
		}
		resolver := NewResolver(repo, testLogger())

		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr("  WF-001  "), IssuerID: strPtr("supplier-9")}
		_, err := resolver.Resolve(context.Background(), line)

		require.NoError(t, err)
		assert.Equal(t, "WF-001", gotSKU)
	})

	t.Run("configured chain is applied in order", func(t *testing.T) {
		var gotSKU string
		repo := &fakeProductRepo{
			bySKUFn: func(ctx context.Context, tenantID, sku, issuerID string) (*models.CatalogProduct, error) {
				gotSKU = sku
				return &models.CatalogProduct{ID: "by-sku"}, nil
			},
		}
		resolver := NewResolver(repo, testLogger()).WithSKUNormalizers("trim", "lowercase")

		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr(" WF-001 "), IssuerID: strPtr("supplier-9")}
		_, err := resolver.Resolve(context.Background(), line)

		require.NoError(t, err)
		assert.Equal(t, "wf-001", gotSKU)
	})

	t.Run("SKU normalized to empty skips the lookup", func(t *testing.T) {
		skuCalled := false
		repo := &fakeProductRepo{
			bySKUFn: func(ctx context.Context, tenantID, sku, issuerID string) (*models.CatalogProduct, error) {
				skuCalled = true
				return nil, nil
			},
		}
		resolver := NewResolver(repo, testLogger())

		line := &models.Line{TenantID: "t1", ProducerSKU: strPtr("   "), IssuerID: strPtr("supplier-9")}
		resolution, err := resolver.Resolve(context.Background(), line)

		require.NoError(t, err)
		assert.Nil(t, resolution)
		assert.False(t, skuCalled)
	})
}

func TestResolver_MalformedIdentifiersSkipped(t *testing.T) {
	gtinCalled := false
	repo := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			gtinCalled = true
			return nil, nil
		},
	}
	resolver := NewResolver(repo, testLogger())

	line := &models.Line{TenantID: "t1", GTIN: strPtr("12345")} // invalid length
	resolution, err := resolver.Resolve(context.Background(), line)

	require.NoError(t, err)
	assert.Nil(t, resolution)
	assert.False(t, gtinCalled, "malformed GTIN must never reach the repository")
}

func TestResolver_NoIdentifiers(t *testing.T) {
	resolver := NewResolver(&fakeProductRepo{}, testLogger())

	resolution, err := resolver.Resolve(context.Background(), &models.Line{TenantID: "t1", Name: "Some Wine"})

	require.NoError(t, err)
	assert.Nil(t, resolution)
}

func TestResolver_RepositoryError(t *testing.T) {
	repo := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			return nil, errors.New("connection refused")
		},
	}
	resolver := NewResolver(repo, testLogger())

	_, err := resolver.Resolve(context.Background(), &models.Line{TenantID: "t1", GTIN: strPtr("3245190000456")})
	assert.Error(t, err)
}
