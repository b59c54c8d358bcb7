package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/internal/repositories"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/normalizers"
	"github.com/winefeed/vine/pkg/tracing"
	"github.com/winefeed/vine/pkg/winedb"
)

// Suggester is the wine database surface the matcher consults for canonical
// name disambiguation. nil disables the lookup.
type Suggester interface {
	Suggest(ctx context.Context, query winedb.SuggestQuery) ([]winedb.Suggestion, error)
}

// MatcherConfig holds the scoring thresholds.
type MatcherConfig struct {
	// AutoMatchThreshold is the score at or above which the top candidate is
	// eligible for automatic acceptance (still subject to guardrails).
	AutoMatchThreshold float64
	// SuggestThreshold is the score at or above which candidates are worth
	// showing a human.
	SuggestThreshold float64
	// MaxCandidates caps the candidate list attached to a result.
	MaxCandidates int
}

// DefaultMatcherConfig returns the default thresholds.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		AutoMatchThreshold: 0.85,
		SuggestThreshold:   0.60,
		MaxCandidates:      5,
	}
}

// scoring weights for candidate comparison
var fieldWeights = map[string]float64{
	"name":     0.45,
	"producer": 0.25,
	"vintage":  0.20,
	"volume":   0.10,
}

// TextMatch is the outcome of a canonical text search: ranked candidates and
// the product behind the best one.
type TextMatch struct {
	Candidates  []models.Candidate
	BestProduct *models.CatalogProduct
}

// Best returns the top candidate, or nil when the search found nothing above
// the suggest threshold.
func (m *TextMatch) Best() *models.Candidate {
	if m == nil || len(m.Candidates) == 0 {
		return nil
	}
	return &m.Candidates[0]
}

// Matcher ranks catalog products against a line's canonical text.
type Matcher struct {
	products  repositories.CatalogProductRepo
	suggester Suggester
	scorer    *Scorer
	config    MatcherConfig
	logger    ectologger.Logger
}

// NewMatcher creates a new canonical text matcher. suggester may be nil.
func NewMatcher(products repositories.CatalogProductRepo, suggester Suggester, config MatcherConfig, logger ectologger.Logger) *Matcher {
	if config.MaxCandidates < 1 {
		config.MaxCandidates = DefaultMatcherConfig().MaxCandidates
	}
	return &Matcher{
		products:  products,
		suggester: suggester,
		scorer:    NewScorer(),
		config:    config,
		logger:    logger,
	}
}

// Match searches the catalog for candidates near the line's canonical string
// and rescores them in process. Candidates below the suggest threshold are
// dropped. The wine database, when configured, contributes an alternate
// canonical spelling; its failure never fails the match.
func (m *Matcher) Match(ctx context.Context, line *models.Line) (*TextMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.Match")
	defer span.End()

	canonical := normalizers.Canonical(line.Producer, line.Name, line.Vintage, line.VolumeML)
	if canonical == "" || canonical == "NV" {
		return &TextMatch{}, nil
	}

	products, err := m.products.SearchCandidates(ctx, line.TenantID, canonical, m.config.MaxCandidates*4)
	if err != nil {
		return nil, err
	}

	// a sparse local result is worth one external disambiguation attempt
	if len(products) == 0 && m.suggester != nil {
		products, err = m.searchViaSuggestion(ctx, line)
		if err != nil {
			return nil, err
		}
	}

	scored := make([]scoredProduct, 0, len(products))
	for i := range products {
		product := &products[i]
		score, reasons := m.scoreCandidate(line, product)
		if score < m.config.SuggestThreshold {
			continue
		}
		scored = append(scored, scoredProduct{product: product, score: score, reasons: reasons})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > m.config.MaxCandidates {
		scored = scored[:m.config.MaxCandidates]
	}

	match := &TextMatch{}
	for _, sp := range scored {
		match.Candidates = append(match.Candidates, models.Candidate{
			ProductID: sp.product.ID,
			Score:     sp.score,
			Method:    models.MatchMethodCanonicalSuggest,
			Name:      sp.product.Name,
			Producer:  sp.product.Producer,
			Vintage:   sp.product.Vintage,
			Reasons:   sp.reasons,
		})
	}
	if len(scored) > 0 {
		match.BestProduct = scored[0].product
	}

	return match, nil
}

type scoredProduct struct {
	product *models.CatalogProduct
	score   float64
	reasons []string
}

// searchViaSuggestion asks the wine database for the canonical spelling and
// retries the catalog search with it. Degrades to an empty result on any
// client error.
func (m *Matcher) searchViaSuggestion(ctx context.Context, line *models.Line) ([]models.CatalogProduct, error) {
	suggestions, err := m.suggester.Suggest(ctx, winedb.SuggestQuery{
		Name:     line.Name,
		Producer: line.Producer,
		Vintage:  line.Vintage,
		Region:   line.Region,
	})
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"line_id": line.ID}).Warn("wine database lookup degraded to local-only matching")
		return nil, nil
	}
	if len(suggestions) == 0 {
		return nil, nil
	}

	best := suggestions[0]
	canonical := normalizers.Canonical(best.Producer, best.Name, line.Vintage, line.VolumeML)
	return m.products.SearchCandidates(ctx, line.TenantID, canonical, m.config.MaxCandidates*4)
}

// scoreCandidate compares a line and a product field by field and returns the
// weighted score with human-readable reasons.
func (m *Matcher) scoreCandidate(line *models.Line, product *models.CatalogProduct) (float64, []string) {
	scores := make(map[string]float64, len(fieldWeights))
	var reasons []string

	lineName := normalizers.NormalizeWineName(line.Name)
	productName := normalizers.NormalizeWineName(product.Name)
	nameScore := m.scorer.TokenSetRatio(lineName, productName)
	if ts := m.scorer.TokenSortRatio(lineName, productName); ts > nameScore {
		nameScore = ts
	}
	scores["name"] = nameScore
	reasons = append(reasons, fmt.Sprintf("name similarity %.2f", nameScore))

	lineProducer := normalizers.NormalizeProducer(line.Producer)
	productProducer := normalizers.NormalizeProducer(product.Producer)
	switch {
	case lineProducer == "" || productProducer == "":
		scores["producer"] = 0.5
	default:
		scores["producer"] = m.scorer.JaroWinkler(lineProducer, productProducer)
		if scores["producer"] == 1.0 {
			reasons = append(reasons, "producer exact")
		} else {
			reasons = append(reasons, fmt.Sprintf("producer similarity %.2f", scores["producer"]))
		}
	}

	scores["vintage"] = vintageScore(line.Vintage, product.Vintage)
	switch {
	case line.Vintage == nil && product.Vintage == nil:
		reasons = append(reasons, "both non-vintage")
	case line.Vintage != nil && product.Vintage != nil && *line.Vintage == *product.Vintage:
		reasons = append(reasons, fmt.Sprintf("vintage %d exact", *line.Vintage))
	case line.Vintage != nil && product.Vintage != nil:
		reasons = append(reasons, fmt.Sprintf("vintage %d vs %d", *line.Vintage, *product.Vintage))
	default:
		reasons = append(reasons, "vintage declared on one side only")
	}

	switch {
	case line.VolumeML == nil || product.VolumeML == nil:
		scores["volume"] = 0.5
	case *line.VolumeML == *product.VolumeML:
		scores["volume"] = 1.0
		reasons = append(reasons, fmt.Sprintf("volume %dml exact", *line.VolumeML))
	default:
		scores["volume"] = 0.0
		reasons = append(reasons, fmt.Sprintf("volume %dml vs %dml", *line.VolumeML, *product.VolumeML))
	}

	return m.scorer.WeightedScore(scores, fieldWeights), reasons
}

// vintageScore never penalizes NV lines against NV candidates, scores a
// declared-vs-absent pair neutrally, and zeroes out conflicting years. The
// guardrail validator turns the conflict into a violation when both sides
// declare one.
func vintageScore(lineVintage, productVintage *int) float64 {
	switch {
	case lineVintage == nil && productVintage == nil:
		return 1.0
	case lineVintage == nil || productVintage == nil:
		return 0.5
	case *lineVintage == *productVintage:
		return 1.0
	default:
		return 0.0
	}
}
