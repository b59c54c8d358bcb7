package matching

import (
	"math"

	"github.com/winefeed/vine/pkg/models"
)

// ABVTolerance is the allowed ABV difference in percentage points. A
// difference of exactly 0.5 passes.
const ABVTolerance = 0.5

// PackTypeCase is the pack type that makes units_per_case meaningful.
const PackTypeCase = "case"

// GuardrailValidator cross-checks a line against a candidate product's
// physical attributes. It runs for every candidate, including exact
// identifier hits, because a GTIN can be mis-cataloged. The validator is pure
// and never persists anything.
type GuardrailValidator struct{}

// NewGuardrailValidator creates a new guardrail validator
func NewGuardrailValidator() *GuardrailValidator {
	return &GuardrailValidator{}
}

// Validate returns every violation between the line and the product. An
// empty result means the pair is admissible for automatic acceptance.
func (v *GuardrailValidator) Validate(line *models.Line, product *models.CatalogProduct) []models.GuardrailViolation {
	var violations []models.GuardrailViolation

	if line.VolumeML != nil && product.VolumeML != nil && *line.VolumeML != *product.VolumeML {
		violations = append(violations, models.NewVolumeMismatch(*line.VolumeML, *product.VolumeML))
	}

	if line.PackType != "" && product.PackType != "" && line.PackType != product.PackType {
		violations = append(violations, models.NewPackMismatch(line.PackType, product.PackType))
	}

	// units per case only means something for case packs, and only when both
	// sides declare it
	if line.PackType == PackTypeCase && product.PackType == PackTypeCase {
		if line.UnitsPerCase != nil && product.UnitsPerCase != nil && *line.UnitsPerCase != *product.UnitsPerCase {
			violations = append(violations, models.NewUnitsPerCaseMismatch(*line.UnitsPerCase, *product.UnitsPerCase))
		}
	}

	// no fuzzy vintage tolerance: 2015 never auto-matches 2016
	if line.Vintage != nil && product.Vintage != nil && *line.Vintage != *product.Vintage {
		violations = append(violations, models.NewVintageMismatch(*line.Vintage, *product.Vintage))
	}

	if line.ABVPercent != nil && product.ABVPercent != nil {
		if math.Abs(*line.ABVPercent-*product.ABVPercent) > ABVTolerance {
			violations = append(violations, models.NewABVOutOfTolerance(*line.ABVPercent, *product.ABVPercent, ABVTolerance))
		}
	}

	for i := range violations {
		violations[i].TenantID = line.TenantID
		violations[i].LineID = line.ID
		violations[i].ProductID = product.ID
	}

	return violations
}
