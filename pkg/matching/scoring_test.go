package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_JaroWinkler(t *testing.T) {
	s := NewScorer()

	t.Run("identical strings score 1.0", func(t *testing.T) {
		assert.Equal(t, 1.0, s.JaroWinkler("chateau margaux", "chateau margaux"))
	})

	t.Run("empty against non-empty scores 0.0", func(t *testing.T) {
		assert.Equal(t, 0.0, s.JaroWinkler("", "chateau"))
	})

	t.Run("close strings score high", func(t *testing.T) {
		score := s.JaroWinkler("chateau margaux", "chateau margeaux")
		assert.Greater(t, score, 0.9)
		assert.Less(t, score, 1.0)
	})

	t.Run("unrelated strings score low", func(t *testing.T) {
		score := s.JaroWinkler("chateau margaux", "penfolds grange")
		assert.Less(t, score, 0.6)
	})

	t.Run("common prefix boosts the score", func(t *testing.T) {
		withPrefix := s.JaroWinkler("margaux", "margeux")
		base := s.Jaro("margaux", "margeux")
		assert.Greater(t, withPrefix, base)
	})
}

func TestScorer_TokenSortRatio(t *testing.T) {
	s := NewScorer()

	t.Run("reordered tokens score 1.0", func(t *testing.T) {
		assert.Equal(t, 1.0, s.TokenSortRatio("margaux chateau 2015", "chateau margaux 2015"))
	})

	t.Run("order-sensitive comparison scores lower", func(t *testing.T) {
		sorted := s.TokenSortRatio("margaux chateau", "chateau margaux")
		raw := s.JaroWinkler("margaux chateau", "chateau margaux")
		assert.Greater(t, sorted, raw)
	})
}

func TestScorer_TokenSetRatio(t *testing.T) {
	s := NewScorer()

	t.Run("identical sets score 1.0", func(t *testing.T) {
		assert.Equal(t, 1.0, s.TokenSetRatio("chateau margaux", "margaux chateau"))
	})

	t.Run("extra marketing tokens on one side are forgiven", func(t *testing.T) {
		score := s.TokenSetRatio("chateau margaux", "chateau margaux grand vin premier cru")
		assert.GreaterOrEqual(t, score, 1.0)
	})

	t.Run("disjoint sets score low", func(t *testing.T) {
		score := s.TokenSetRatio("chateau margaux", "penfolds grange")
		assert.Less(t, score, 0.6)
	})

	t.Run("empty input scores 0.0", func(t *testing.T) {
		assert.Equal(t, 0.0, s.TokenSetRatio("", "chateau"))
	})
}

func TestScorer_Levenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("margaux", "margaux"))
	assert.Equal(t, 1, s.LevenshteinDistance("margaux", "margeaux"))
	assert.Equal(t, 7, s.LevenshteinDistance("", "margaux"))
	assert.Equal(t, 1.0, s.Levenshtein("", ""))
}

func TestScorer_WeightedScore(t *testing.T) {
	s := NewScorer()

	t.Run("empty scores return 0.0", func(t *testing.T) {
		assert.Equal(t, 0.0, s.WeightedScore(nil, fieldWeights))
	})

	t.Run("perfect fields return 1.0", func(t *testing.T) {
		scores := map[string]float64{"name": 1.0, "producer": 1.0, "vintage": 1.0, "volume": 1.0}
		assert.InDelta(t, 1.0, s.WeightedScore(scores, fieldWeights), 0.0001)
	})

	t.Run("weights bias the average", func(t *testing.T) {
		nameOnly := s.WeightedScore(map[string]float64{"name": 1.0, "producer": 0.0, "vintage": 0.0, "volume": 0.0}, fieldWeights)
		volumeOnly := s.WeightedScore(map[string]float64{"name": 0.0, "producer": 0.0, "vintage": 0.0, "volume": 1.0}, fieldWeights)
		assert.Greater(t, nameOnly, volumeOnly)
	})
}

func TestVintageScore(t *testing.T) {
	tests := []struct {
		name     string
		line     *int
		product  *int
		expected float64
	}{
		{"both non-vintage", nil, nil, 1.0},
		{"line non-vintage only", nil, intPtr(2015), 0.5},
		{"product non-vintage only", intPtr(2015), nil, 0.5},
		{"equal years", intPtr(2015), intPtr(2015), 1.0},
		{"conflicting years", intPtr(2015), intPtr(2016), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, vintageScore(tt.line, tt.product))
		})
	}
}
