package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/winedb"
)

// fakeSuggester implements Suggester.
type fakeSuggester struct {
	suggestions []winedb.Suggestion
	err         error
	called      bool
}

func (f *fakeSuggester) Suggest(ctx context.Context, query winedb.SuggestQuery) ([]winedb.Suggestion, error) {
	f.called = true
	return f.suggestions, f.err
}

func testMatcherLine() *models.Line {
	return &models.Line{
		ID:       "line-1",
		TenantID: "t1",
		Name:     "Chateau Margaux Grand Vin",
		Producer: "Chateau Margaux",
		Vintage:  intPtr(2015),
		VolumeML: intPtr(750),
	}
}

func TestMatcher_RanksAndTruncates(t *testing.T) {
	products := []models.CatalogProduct{
		{ID: "exact", Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Vintage: intPtr(2015), VolumeML: intPtr(750)},
		{ID: "wrong-vintage", Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Vintage: intPtr(2012), VolumeML: intPtr(750)},
		{ID: "unrelated", Name: "Penfolds Grange Shiraz", Producer: "Penfolds", Vintage: intPtr(2012), VolumeML: intPtr(1500)},
	}
	repo := &fakeProductRepo{
		searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
			return products, nil
		},
	}
	matcher := NewMatcher(repo, nil, DefaultMatcherConfig(), testLogger())

	match, err := matcher.Match(context.Background(), testMatcherLine())

	require.NoError(t, err)
	require.NotNil(t, match.Best())
	assert.Equal(t, "exact", match.Best().ProductID)
	assert.InDelta(t, 1.0, match.Best().Score, 0.01)
	assert.Equal(t, "exact", match.BestProduct.ID)

	for _, candidate := range match.Candidates {
		assert.NotEqual(t, "unrelated", candidate.ProductID, "candidates below the suggest threshold are dropped")
		assert.GreaterOrEqual(t, candidate.Score, DefaultMatcherConfig().SuggestThreshold)
		assert.Equal(t, models.MatchMethodCanonicalSuggest, candidate.Method)
		assert.NotEmpty(t, candidate.Reasons)
	}
}

func TestMatcher_MaxCandidatesCap(t *testing.T) {
	var products []models.CatalogProduct
	for i := 0; i < 10; i++ {
		products = append(products, models.CatalogProduct{
			ID: string(rune('a' + i)), Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Vintage: intPtr(2015), VolumeML: intPtr(750),
		})
	}
	repo := &fakeProductRepo{
		searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
			return products, nil
		},
	}
	config := DefaultMatcherConfig()
	config.MaxCandidates = 3
	matcher := NewMatcher(repo, nil, config, testLogger())

	match, err := matcher.Match(context.Background(), testMatcherLine())

	require.NoError(t, err)
	assert.Len(t, match.Candidates, 3)
}

func TestMatcher_NonVintageScoring(t *testing.T) {
	repo := &fakeProductRepo{
		searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
			return []models.CatalogProduct{
				{ID: "nv", Name: "Grande Cuvee", Producer: "Krug", VolumeML: intPtr(750)},
				{ID: "vintage-2015", Name: "Grande Cuvee", Producer: "Krug", Vintage: intPtr(2015), VolumeML: intPtr(750)},
			}, nil
		},
	}
	matcher := NewMatcher(repo, nil, DefaultMatcherConfig(), testLogger())

	line := &models.Line{TenantID: "t1", Name: "Grande Cuvee", Producer: "Krug", VolumeML: intPtr(750)}
	match, err := matcher.Match(context.Background(), line)

	require.NoError(t, err)
	require.NotNil(t, match.Best())
	assert.Equal(t, "nv", match.Best().ProductID, "NV line prefers the NV product")
	require.Len(t, match.Candidates, 2, "vintage-specific candidate is still suggested")
	assert.Greater(t, match.Candidates[0].Score, match.Candidates[1].Score)
}

func TestMatcher_EmptyCanonical(t *testing.T) {
	searchCalled := false
	repo := &fakeProductRepo{
		searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
			searchCalled = true
			return nil, nil
		},
	}
	matcher := NewMatcher(repo, nil, DefaultMatcherConfig(), testLogger())

	match, err := matcher.Match(context.Background(), &models.Line{TenantID: "t1"})

	require.NoError(t, err)
	assert.Nil(t, match.Best())
	assert.False(t, searchCalled)
}

func TestMatcher_SuggesterFallback(t *testing.T) {
	t.Run("retries the search with the suggested spelling", func(t *testing.T) {
		var queries []string
		repo := &fakeProductRepo{
			searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
				queries = append(queries, canonical)
				if len(queries) == 1 {
					return nil, nil // local catalog knows nothing under the supplier spelling
				}
				return []models.CatalogProduct{
					{ID: "found", Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Vintage: intPtr(2015), VolumeML: intPtr(750)},
				}, nil
			},
		}
		suggester := &fakeSuggester{
			suggestions: []winedb.Suggestion{{Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Score: 0.97}},
		}
		matcher := NewMatcher(repo, suggester, DefaultMatcherConfig(), testLogger())

		line := testMatcherLine()
		line.Name = "Ch Margaux GV" // supplier shorthand
		match, err := matcher.Match(context.Background(), line)

		require.NoError(t, err)
		assert.True(t, suggester.called)
		require.Len(t, queries, 2)
		assert.NotEqual(t, queries[0], queries[1])
		require.NotNil(t, match.Best())
		assert.Equal(t, "found", match.Best().ProductID)
	})

	t.Run("suggester failure degrades to an empty match", func(t *testing.T) {
		repo := &fakeProductRepo{}
		suggester := &fakeSuggester{err: errors.New("winedb down")}
		matcher := NewMatcher(repo, suggester, DefaultMatcherConfig(), testLogger())

		match, err := matcher.Match(context.Background(), testMatcherLine())

		require.NoError(t, err, "an unavailable wine database never fails the match")
		assert.Nil(t, match.Best())
	})

	t.Run("suggester skipped when local search has hits", func(t *testing.T) {
		repo := &fakeProductRepo{
			searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
				return []models.CatalogProduct{
					{ID: "local", Name: "Chateau Margaux Grand Vin", Producer: "Chateau Margaux", Vintage: intPtr(2015), VolumeML: intPtr(750)},
				}, nil
			},
		}
		suggester := &fakeSuggester{}
		matcher := NewMatcher(repo, suggester, DefaultMatcherConfig(), testLogger())

		_, err := matcher.Match(context.Background(), testMatcherLine())

		require.NoError(t, err)
		assert.False(t, suggester.called)
	})
}

func TestMatcher_SearchError(t *testing.T) {
	repo := &fakeProductRepo{
		searchFn: func(ctx context.Context, tenantID, canonical string, limit int) ([]models.CatalogProduct, error) {
			return nil, errors.New("query timeout")
		},
	}
	matcher := NewMatcher(repo, nil, DefaultMatcherConfig(), testLogger())

	_, err := matcher.Match(context.Background(), testMatcherLine())
	assert.Error(t, err)
}
