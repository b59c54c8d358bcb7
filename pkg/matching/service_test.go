package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winefeed/vine/pkg/events"
	"github.com/winefeed/vine/pkg/models"
)

func newTestService(products *fakeProductRepo) (*Service, *fakeLineRepo, *fakeResultRepo, *fakeViolationRepo) {
	logger := testLogger()
	lines := newFakeLineRepo()
	results := newFakeResultRepo()
	violations := newFakeViolationRepo()

	service := NewService(
		lines, results, violations,
		NewResolver(products, logger),
		NewMatcher(products, nil, DefaultMatcherConfig(), logger),
		NewGuardrailValidator(),
		NewDecider(DecisionConfig{AutoMatchThreshold: 0.85, SuggestThreshold: 0.60}).WithSampler(func() float64 { return 1.0 }),
		NewAutoCreator(products, nil, nil, AutoCreateConfig{Enabled: true, WindowDays: 7, MaxPerWindow: 100}, logger),
		events.NewEmitter(nil, logger),
		ServiceConfig{WorkerCount: 2},
		logger,
	)
	return service, lines, results, violations
}

func TestService_MatchLine_IdentifierHit(t *testing.T) {
	product := &models.CatalogProduct{ID: "product-1", VolumeML: intPtr(750)}
	products := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			return product, nil
		},
	}
	service, _, results, violations := newTestService(products)

	line := &models.Line{ID: "line-1", TenantID: "t1", GTIN: strPtr("3245190000456"), VolumeML: intPtr(750)}
	result, err := service.MatchLine(context.Background(), line)

	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusAutoMatch, result.Status)
	assert.Equal(t, models.MatchMethodGTINExact, result.Method)
	assert.NotEmpty(t, result.ID, "the returned result is the persisted one")

	latest := results.latestFor("line-1")
	require.NotNil(t, latest)
	assert.Equal(t, models.MatchStatusAutoMatch, latest.Status)
	assert.Empty(t, violations.violations)
}

func TestService_MatchLine_ViolationsPersisted(t *testing.T) {
	product := &models.CatalogProduct{ID: "product-1", VolumeML: intPtr(1500)}
	products := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			return product, nil
		},
	}
	service, _, results, violations := newTestService(products)

	line := &models.Line{ID: "line-1", TenantID: "t1", GTIN: strPtr("3245190000456"), VolumeML: intPtr(750)}
	result, err := service.MatchLine(context.Background(), line)

	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPendingReview, result.Status)

	require.Len(t, violations.violations, 1)
	stored := violations.violations[0]
	assert.Equal(t, models.ViolationVolumeMismatch, stored.Type)
	assert.Equal(t, models.MatchStatusPendingReview, stored.StatusAtDecision)
	assert.Equal(t, 1.0, stored.ConfidenceAtDecision)

	require.NotNil(t, results.latestFor("line-1"))
}

func TestService_MatchLine_FailureDegradesToReview(t *testing.T) {
	products := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			return nil, errors.New("database gone")
		},
	}
	service, _, results, _ := newTestService(products)

	line := &models.Line{ID: "line-1", TenantID: "t1", GTIN: strPtr("3245190000456")}
	result, err := service.MatchLine(context.Background(), line)

	require.Error(t, err, "the original failure is still reported")
	require.NotNil(t, result, "a fallback result is persisted so the line is not lost")
	assert.Equal(t, models.MatchStatusPendingReview, result.Status)
	assert.Contains(t, result.Explanation, "database gone")

	latest := results.latestFor("line-1")
	require.NotNil(t, latest)
	assert.Equal(t, models.MatchStatusPendingReview, latest.Status)
}

func TestService_MatchBatch_IsolatesFailures(t *testing.T) {
	products := &fakeProductRepo{
		byGTINFn: func(ctx context.Context, tenantID, gtin string) (*models.CatalogProduct, error) {
			if gtin == "03245190000456" {
				return nil, errors.New("lookup failed")
			}
			return &models.CatalogProduct{ID: "product-1"}, nil
		},
	}
	service, _, _, _ := newTestService(products)

	lines := []*models.Line{
		{ID: "line-1", TenantID: "t1", GTIN: strPtr("3245190000456")},
		{ID: "line-2", TenantID: "t1", GTIN: strPtr("4245190000455")},
	}
	batch, err := service.MatchBatch(context.Background(), lines)

	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalLines)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)
	require.Len(t, batch.Results, 2)
	for _, result := range batch.Results {
		require.NotNil(t, result, "every line ends with a persisted result")
	}
}

func TestService_MatchLine_AutoCreates(t *testing.T) {
	seeded := &models.CatalogProduct{ID: "seeded-1", AutoCreated: true, VolumeML: intPtr(750)}
	products := &fakeProductRepo{
		insertIfAbsentFn: func(ctx context.Context, tenantID string, req *models.CreateCatalogProductRequest) (*models.CatalogProduct, bool, error) {
			return seeded, true, nil
		},
	}
	service, _, _, _ := newTestService(products)

	line := &models.Line{
		ID: "line-1", TenantID: "t1",
		GTIN:     strPtr("3245190000456"),
		Name:     "Chateau Margaux",
		Producer: "Chateau Margaux",
		Vintage:  intPtr(2015),
		Country:  "France",
		VolumeML: intPtr(750),
	}
	result, err := service.MatchLine(context.Background(), line)

	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusAutoMatch, result.Status)
	assert.Equal(t, models.MatchMethodGTINExact, result.Method)
	require.NotNil(t, result.MatchedProductID)
	assert.Equal(t, "seeded-1", *result.MatchedProductID)
}

func TestService_IngestBatch(t *testing.T) {
	products := &fakeProductRepo{}
	service, lines, results, _ := newTestService(products)

	reqs := []models.CreateLineRequest{
		{ImportID: "imp-1", LineNumber: 1, Name: "Chateau Margaux"},
		{ImportID: "imp-1", LineNumber: 2, Name: "Penfolds Grange"},
	}

	batch, err := service.IngestBatch(context.Background(), "t1", "imp-1", models.SourceTypeSupplierFeed, "feed-9", reqs)

	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalLines)
	assert.Equal(t, 2, batch.SuccessCount)

	stored, err := lines.ListByImport(context.Background(), "t1", "imp-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	for _, line := range stored {
		assert.Equal(t, models.SourceTypeSupplierFeed, line.SourceType)
		assert.Equal(t, "feed-9", line.SourceID)
	}

	t.Run("redelivery does not duplicate lines", func(t *testing.T) {
		_, err := service.IngestBatch(context.Background(), "t1", "imp-1", models.SourceTypeSupplierFeed, "feed-9", reqs)
		require.NoError(t, err)

		stored, err := lines.ListByImport(context.Background(), "t1", "imp-1")
		require.NoError(t, err)
		assert.Len(t, stored, 2)

		// the rerun appended fresh results against the stored line identities
		for _, line := range stored {
			assert.NotNil(t, results.latestFor(line.ID))
		}
	})
}

func TestService_Review(t *testing.T) {
	products := &fakeProductRepo{}
	service, lines, results, _ := newTestService(products)

	line := &models.Line{ID: "line-1", TenantID: "t1", ImportID: "imp-1", Name: "Chateau Margaux"}
	_, err := lines.Create(context.Background(), line)
	require.NoError(t, err)

	seedSuggestion := func(t *testing.T) {
		t.Helper()
		_, err := results.Append(context.Background(), &models.MatchResult{
			TenantID:   "t1",
			LineID:     "line-1",
			Status:     models.MatchStatusSuggested,
			Method:     models.MatchMethodCanonicalSuggest,
			Confidence: 0.72,
		})
		require.NoError(t, err)
	}

	t.Run("confirm requires a product id", func(t *testing.T) {
		seedSuggestion(t)
		_, err := service.Confirm(context.Background(), "t1", "line-1", &models.ReviewRequest{})
		assert.Error(t, err)
	})

	t.Run("confirm links the chosen product", func(t *testing.T) {
		seedSuggestion(t)
		confirmed, err := service.Confirm(context.Background(), "t1", "line-1", &models.ReviewRequest{ProductID: strPtr("product-7"), Note: "verified against the label"})

		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusConfirmed, confirmed.Status)
		assert.Equal(t, models.MatchMethodManual, confirmed.Method)
		assert.Equal(t, 0.72, confirmed.Confidence, "confidence from the reviewed result is carried")
		require.NotNil(t, confirmed.MatchedProductID)
		assert.Equal(t, "product-7", *confirmed.MatchedProductID)
		assert.Contains(t, confirmed.Explanation, "verified against the label")
	})

	t.Run("terminal results conflict on a second review", func(t *testing.T) {
		_, err := service.Reject(context.Background(), "t1", "line-1", nil)
		assert.Error(t, err, "the confirmed result from the previous subtest is terminal")
	})

	t.Run("reject clears the product link", func(t *testing.T) {
		seedSuggestion(t)
		rejected, err := service.Reject(context.Background(), "t1", "line-1", &models.ReviewRequest{Note: "wrong vintage entirely"})

		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusRejected, rejected.Status)
		assert.Equal(t, models.MatchMethodManual, rejected.Method)
		assert.Nil(t, rejected.MatchedProductID)
	})

	t.Run("review without any result is an error", func(t *testing.T) {
		other := &models.Line{ID: "line-2", TenantID: "t1", ImportID: "imp-1"}
		_, err := lines.Create(context.Background(), other)
		require.NoError(t, err)

		_, err = service.Confirm(context.Background(), "t1", "line-2", &models.ReviewRequest{ProductID: strPtr("product-7")})
		assert.Error(t, err)
	})
}
