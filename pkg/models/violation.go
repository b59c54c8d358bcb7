package models

import (
	"fmt"
	"time"
)

// ViolationType is the closed set of guardrail violations. New types require
// a new constructor below; nothing else may mint one.
type ViolationType string

const (
	ViolationVolumeMismatch       ViolationType = "VOLUME_MISMATCH"
	ViolationPackMismatch         ViolationType = "PACK_MISMATCH"
	ViolationUnitsPerCaseMismatch ViolationType = "UNITS_PER_CASE_MISMATCH"
	ViolationVintageMismatch      ViolationType = "VINTAGE_MISMATCH"
	ViolationABVOutOfTolerance    ViolationType = "ABV_OUT_OF_TOLERANCE"
)

// GuardrailViolation records a hard attribute conflict between a line and the
// product it matched against. Violations are append-only and capture the
// status and confidence at decision time.
type GuardrailViolation struct {
	ID        string        `json:"id" db:"id"`
	TenantID  string        `json:"tenant_id" db:"tenant_id"`
	LineID    string        `json:"line_id" db:"line_id"`
	ProductID string        `json:"product_id" db:"product_id"`
	Type      ViolationType `json:"type" db:"type"`

	LineValue    string `json:"line_value" db:"line_value"`
	ProductValue string `json:"product_value" db:"product_value"`
	Reason       string `json:"reason" db:"reason"`

	StatusAtDecision     MatchStatus `json:"status_at_decision" db:"status_at_decision"`
	ConfidenceAtDecision float64     `json:"confidence_at_decision" db:"confidence_at_decision"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func newViolation(vt ViolationType, lineValue, productValue, reason string) GuardrailViolation {
	return GuardrailViolation{
		Type:         vt,
		LineValue:    lineValue,
		ProductValue: productValue,
		Reason:       reason,
	}
}

// NewVolumeMismatch records a bottle volume conflict.
func NewVolumeMismatch(lineML, productML int) GuardrailViolation {
	return newViolation(
		ViolationVolumeMismatch,
		fmt.Sprintf("%dml", lineML),
		fmt.Sprintf("%dml", productML),
		fmt.Sprintf("line volume %dml does not equal product volume %dml", lineML, productML),
	)
}

// NewPackMismatch records a pack type conflict.
func NewPackMismatch(linePack, productPack string) GuardrailViolation {
	return newViolation(
		ViolationPackMismatch,
		linePack,
		productPack,
		fmt.Sprintf("line pack type %q does not equal product pack type %q", linePack, productPack),
	)
}

// NewUnitsPerCaseMismatch records a case size conflict.
func NewUnitsPerCaseMismatch(lineUnits, productUnits int) GuardrailViolation {
	return newViolation(
		ViolationUnitsPerCaseMismatch,
		fmt.Sprintf("%d", lineUnits),
		fmt.Sprintf("%d", productUnits),
		fmt.Sprintf("line units per case %d does not equal product units per case %d", lineUnits, productUnits),
	)
}

// NewVintageMismatch records a vintage year conflict. Vintage comparison has
// no tolerance.
func NewVintageMismatch(lineVintage, productVintage int) GuardrailViolation {
	return newViolation(
		ViolationVintageMismatch,
		fmt.Sprintf("%d", lineVintage),
		fmt.Sprintf("%d", productVintage),
		fmt.Sprintf("line vintage %d does not equal product vintage %d", lineVintage, productVintage),
	)
}

// NewABVOutOfTolerance records an ABV conflict beyond the allowed tolerance.
func NewABVOutOfTolerance(lineABV, productABV, tolerance float64) GuardrailViolation {
	return newViolation(
		ViolationABVOutOfTolerance,
		fmt.Sprintf("%.2f%%", lineABV),
		fmt.Sprintf("%.2f%%", productABV),
		fmt.Sprintf("line abv %.2f%% differs from product abv %.2f%% by more than %.1f points", lineABV, productABV, tolerance),
	)
}

// RiskFlagType is the closed set of non-blocking risk markers.
type RiskFlagType string

const (
	RiskFlagMissingProductLink       RiskFlagType = "MISSING_PRODUCT_LINK"
	RiskFlagMissingVintageToSpecific RiskFlagType = "MISSING_VINTAGE_TO_SPECIFIC"
	RiskFlagFuzzyHighConfidence      RiskFlagType = "FUZZY_HIGH_CONFIDENCE"
)

// RiskFlag annotates a match result with a hazard that does not block the
// decision. Flags are append-only.
type RiskFlag struct {
	Type        RiskFlagType `json:"type"`
	Description string       `json:"description"`
	Confidence  float64      `json:"confidence"`
}
