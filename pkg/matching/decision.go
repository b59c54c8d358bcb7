package matching

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/winefeed/vine/pkg/models"
)

// FuzzyHighConfidenceFloor is the confidence at which a text-only match is
// flagged for having no identifier evidence behind it.
const FuzzyHighConfidenceFloor = 0.90

// DecisionConfig controls how outcomes turn into statuses.
type DecisionConfig struct {
	AutoMatchThreshold float64
	SuggestThreshold   float64
	// SamplingReviewRate is the fraction of automatic decisions diverted to
	// human spot checks. 0 disables sampling.
	SamplingReviewRate float64
}

// DecisionInput gathers everything the pipeline learned about a line.
type DecisionInput struct {
	Line       *models.Line
	Resolution *Resolution
	TextMatch  *TextMatch
	AutoCreate *AutoCreateOutcome
	// Violations are the guardrail findings against the product the line is
	// about to be matched to.
	Violations []models.GuardrailViolation
}

// matchedProduct returns the product the decision is about, in evidence
// priority order: identifier hit, then auto-created, then best text candidate.
func (in *DecisionInput) matchedProduct() *models.CatalogProduct {
	if in.Resolution != nil && in.Resolution.Product != nil {
		return in.Resolution.Product
	}
	if in.AutoCreate.Eligible() {
		return in.AutoCreate.Product
	}
	if in.TextMatch != nil {
		return in.TextMatch.BestProduct
	}
	return nil
}

// Decider turns pipeline evidence into a match result.
type Decider struct {
	config DecisionConfig
	sample func() float64
}

// NewDecider creates a new Decider.
func NewDecider(config DecisionConfig) *Decider {
	return &Decider{
		config: config,
		sample: rand.Float64,
	}
}

// WithSampler replaces the sampling source. Used by tests.
func (d *Decider) WithSampler(sample func() float64) *Decider {
	d.sample = sample
	return d
}

// Decide assembles the match result for a line. The result is not yet
// persisted; ID, latest flag and timestamps belong to the repository.
func (d *Decider) Decide(in DecisionInput) *models.MatchResult {
	result := &models.MatchResult{
		TenantID: in.Line.TenantID,
		LineID:   in.Line.ID,
	}
	if in.TextMatch != nil {
		result.Candidates = in.TextMatch.Candidates
	}

	switch {
	case in.Resolution != nil && in.Resolution.Product != nil:
		d.decideIdentifier(in, result, in.Resolution.Product, in.Resolution.Method)

	case in.AutoCreate.Eligible():
		d.decideAutoCreated(in, result)

	case in.AutoCreate != nil && in.AutoCreate.CapReached:
		result.Status = models.MatchStatusPendingReview
		result.Method = models.MatchMethodNoMatch
		result.Explanation = "auto-create cap reached for the current window; line held for manual review"

	case in.TextMatch.Best() != nil:
		d.decideText(in, result)

	default:
		result.Status = models.MatchStatusNoMatch
		result.Method = models.MatchMethodNoMatch
		result.Explanation = "no identifier hit and no candidate above the suggest threshold"
	}

	d.applyRiskFlags(in, result)
	return result
}

// decideIdentifier handles a hard identifier hit: confidence 1.0, automatic
// unless a guardrail disagrees.
func (d *Decider) decideIdentifier(in DecisionInput, result *models.MatchResult, product *models.CatalogProduct, method models.MatchMethod) {
	result.Method = method
	result.Confidence = 1.0
	result.MatchedProductID = &product.ID

	if len(in.Violations) > 0 {
		result.Status = models.MatchStatusPendingReview
		result.Explanation = fmt.Sprintf("identifier matched via %s but guardrails failed: %s", method, violationSummary(in.Violations))
		return
	}

	result.Status = d.maybeSample(models.MatchStatusAutoMatch)
	result.Explanation = fmt.Sprintf("identifier matched via %s with all guardrails passing", method)
	if result.Status == models.MatchStatusSamplingReview {
		result.Explanation += "; diverted for sampling review"
	}
}

// decideAutoCreated matches the line to the product the policy just seeded.
// The identifier that qualified the line for auto-create names the method.
func (d *Decider) decideAutoCreated(in DecisionInput, result *models.MatchResult) {
	product := in.AutoCreate.Product
	result.Method = identifierMethod(in.Line)
	result.Confidence = 1.0
	result.MatchedProductID = &product.ID

	if len(in.Violations) > 0 {
		// possible when a concurrent create won with different attributes
		result.Status = models.MatchStatusPendingReview
		result.Explanation = fmt.Sprintf("matched auto-created product but guardrails failed: %s", violationSummary(in.Violations))
		return
	}

	result.Status = d.maybeSample(models.MatchStatusAutoMatch)
	if in.AutoCreate.Created {
		result.Explanation = "no existing product for the identifier; auto-created and matched"
	} else {
		result.Explanation = "matched product created concurrently for the same line key"
	}
	if result.Status == models.MatchStatusSamplingReview {
		result.Explanation += "; diverted for sampling review"
	}
}

// decideText handles the fuzzy path: high scores are automatic but flagged as
// guarded, mid scores are suggestions.
func (d *Decider) decideText(in DecisionInput, result *models.MatchResult) {
	best := in.TextMatch.Best()
	result.Method = models.MatchMethodCanonicalSuggest
	result.Confidence = best.Score

	if best.Score >= d.config.AutoMatchThreshold {
		if len(in.Violations) > 0 {
			result.Status = models.MatchStatusPendingReview
			result.MatchedProductID = &best.ProductID
			result.Explanation = fmt.Sprintf("canonical match scored %.2f but guardrails failed: %s", best.Score, violationSummary(in.Violations))
			return
		}
		result.Status = d.maybeSample(models.MatchStatusAutoMatchWithGuards)
		result.MatchedProductID = &best.ProductID
		result.Explanation = fmt.Sprintf("canonical match scored %.2f, above the auto threshold, with all guardrails passing", best.Score)
		if result.Status == models.MatchStatusSamplingReview {
			result.Explanation += "; diverted for sampling review"
		}
		return
	}

	result.Status = models.MatchStatusSuggested
	result.Explanation = fmt.Sprintf("best canonical candidate scored %.2f; suggestions need confirmation", best.Score)
}

// maybeSample diverts a slice of automatic decisions to human spot checks.
func (d *Decider) maybeSample(status models.MatchStatus) models.MatchStatus {
	if d.config.SamplingReviewRate <= 0 {
		return status
	}
	if d.sample() < d.config.SamplingReviewRate {
		return models.MatchStatusSamplingReview
	}
	return status
}

// applyRiskFlags attaches the advisory flags the decision carries alongside
// its status.
func (d *Decider) applyRiskFlags(in DecisionInput, result *models.MatchResult) {
	result.RiskFlags = append(result.RiskFlags, RecomputeRiskFlags(in.Line, result, in.matchedProduct())...)
}

// RecomputeRiskFlags derives the advisory flags for a result against the line
// and product as they exist now. The decider applies these rules at decision
// time; the safety gate re-runs them during audits so flags reflect the
// current catalog rather than the one seen when the decision was made.
func RecomputeRiskFlags(line *models.Line, result *models.MatchResult, product *models.CatalogProduct) []models.RiskFlag {
	var flags []models.RiskFlag

	if result.Status.IsAutoEquivalent() && (result.MatchedProductID == nil || product == nil) {
		flags = append(flags, models.RiskFlag{
			Type:        models.RiskFlagMissingProductLink,
			Description: "automatic status issued without a matched product behind it",
			Confidence:  result.Confidence,
		})
	}

	if line.IsNonVintage() && product != nil && product.IsVintageSpecific() && result.MatchedProductID != nil {
		flags = append(flags, models.RiskFlag{
			Type:        models.RiskFlagMissingVintageToSpecific,
			Description: fmt.Sprintf("non-vintage line matched to vintage-specific product (%d)", *product.Vintage),
			Confidence:  result.Confidence,
		})
	}

	if result.Method == models.MatchMethodCanonicalSuggest &&
		result.Confidence >= FuzzyHighConfidenceFloor &&
		!hasIdentifierBacking(line) {
		flags = append(flags, models.RiskFlag{
			Type:        models.RiskFlagFuzzyHighConfidence,
			Description: fmt.Sprintf("text-only match at %.2f confidence with no identifier evidence", result.Confidence),
			Confidence:  result.Confidence,
		})
	}

	return flags
}

// hasIdentifierBacking reports whether the line carries GTIN or SKU evidence
// that could have corroborated a text match.
func hasIdentifierBacking(line *models.Line) bool {
	return (line.GTIN != nil && *line.GTIN != "") || (line.ProducerSKU != nil && *line.ProducerSKU != "")
}

// identifierMethod reports which exact-match method the line's strongest
// identifier would use.
func identifierMethod(line *models.Line) models.MatchMethod {
	switch {
	case line.GTIN != nil && *line.GTIN != "":
		return models.MatchMethodGTINExact
	case line.LWIN != nil && *line.LWIN != "":
		return models.MatchMethodLWINExact
	case line.ProducerSKU != nil && *line.ProducerSKU != "":
		return models.MatchMethodSKUExact
	default:
		return models.MatchMethodNoMatch
	}
}

func violationSummary(violations []models.GuardrailViolation) string {
	types := make([]string, 0, len(violations))
	for _, v := range violations {
		types = append(types, string(v.Type))
	}
	return strings.Join(types, ", ")
}
