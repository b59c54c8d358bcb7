package models

import (
	"time"
)

// Match statuses. AUTO_MATCH and AUTO_MATCH_WITH_GUARDS are the only statuses
// the engine may link a product under without human review.
type MatchStatus string

const (
	MatchStatusNoMatch             MatchStatus = "NO_MATCH"
	MatchStatusSuggested           MatchStatus = "SUGGESTED"
	MatchStatusAutoMatch           MatchStatus = "AUTO_MATCH"
	MatchStatusAutoMatchWithGuards MatchStatus = "AUTO_MATCH_WITH_GUARDS"
	MatchStatusSamplingReview      MatchStatus = "SAMPLING_REVIEW"
	MatchStatusPendingReview       MatchStatus = "PENDING_REVIEW"
	MatchStatusConfirmed           MatchStatus = "CONFIRMED"
	MatchStatusRejected            MatchStatus = "REJECTED"
)

// IsAuto reports whether the status was reached without human action.
func (s MatchStatus) IsAuto() bool {
	return s == MatchStatusAutoMatch || s == MatchStatusAutoMatchWithGuards
}

// IsAutoEquivalent reports whether the status counts as an automatic
// acceptance for downstream consumers. A sampled decision is an automatic one
// diverted to a spot check, not a doubt about the match.
func (s MatchStatus) IsAutoEquivalent() bool {
	return s.IsAuto() || s == MatchStatusSamplingReview
}

// IsTerminal reports whether the status can only change via a new match run.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusConfirmed || s == MatchStatusRejected
}

// NeedsReview reports whether the line is waiting on a human.
func (s MatchStatus) NeedsReview() bool {
	return s == MatchStatusPendingReview || s == MatchStatusSamplingReview || s == MatchStatusSuggested
}

// Match methods describe the evidence that produced the link.
type MatchMethod string

const (
	MatchMethodGTINExact        MatchMethod = "GTIN_EXACT"
	MatchMethodLWINExact        MatchMethod = "LWIN_EXACT"
	MatchMethodSKUExact         MatchMethod = "SKU_EXACT"
	MatchMethodCanonicalSuggest MatchMethod = "CANONICAL_SUGGEST"
	MatchMethodManual           MatchMethod = "MANUAL"
	MatchMethodNoMatch          MatchMethod = "NO_MATCH"
)

// Candidate is one scored catalog product considered for a line.
type Candidate struct {
	ProductID  string      `json:"product_id"`
	Score      float64     `json:"score"`
	Method     MatchMethod `json:"method"`
	Name       string      `json:"name"`
	Producer   string      `json:"producer"`
	Vintage    *int        `json:"vintage,omitempty"`
	Reasons    []string    `json:"reasons,omitempty"`
}

// MatchResult is one decision for one line. Results are append-only: every
// match run writes a fresh row and flips is_latest, so history is retained
// but never consulted when deciding.
type MatchResult struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	LineID   string `json:"line_id" db:"line_id"`

	Status     MatchStatus `json:"status" db:"status"`
	Method     MatchMethod `json:"method" db:"method"`
	Confidence float64     `json:"confidence" db:"confidence"`

	MatchedProductID *string `json:"matched_product_id,omitempty" db:"matched_product_id"`
	Explanation      string  `json:"explanation" db:"explanation"`

	// Candidates is only populated for non-terminal statuses that still need
	// a human to pick.
	Candidates []Candidate `json:"candidates,omitempty" db:"-"`

	RiskFlags []RiskFlag `json:"risk_flags,omitempty" db:"-"`

	IsLatest  bool      `json:"is_latest" db:"is_latest"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MatchResultListResponse is the response for listing match results.
type MatchResultListResponse struct {
	Items      []MatchResult `json:"items"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// ReviewRequest is the request body for confirm/reject actions.
type ReviewRequest struct {
	ProductID *string `json:"product_id,omitempty"`
	Note      string  `json:"note"`
}
