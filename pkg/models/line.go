package models

import (
	"time"
)

// Source types for inbound lines.
const (
	SourceTypeSupplierFeed = "SUPPLIER_FEED"
	SourceTypeManualUpload = "MANUAL_UPLOAD"
	SourceTypeAPI          = "API"
)

// Line is one product row from a supplier import. Lines are immutable once
// stored; re-matching appends a new MatchResult rather than mutating the line.
type Line struct {
	ID         string `json:"id" db:"id"`
	TenantID   string `json:"tenant_id" db:"tenant_id"`
	ImportID   string `json:"import_id" db:"import_id"`
	LineNumber int    `json:"line_number" db:"line_number"`

	// Identifiers
	GTIN        *string `json:"gtin,omitempty" db:"gtin"`
	LWIN        *string `json:"lwin,omitempty" db:"lwin"`
	ProducerSKU *string `json:"producer_sku,omitempty" db:"producer_sku"`
	IssuerID    *string `json:"issuer_id,omitempty" db:"issuer_id"`

	// Declared attributes
	Name         string   `json:"name" db:"name"`
	Producer     string   `json:"producer" db:"producer"`
	Vintage      *int     `json:"vintage,omitempty" db:"vintage"` // nil means non-vintage
	Country      string   `json:"country" db:"country"`
	Region       string   `json:"region" db:"region"`
	VolumeML     *int     `json:"volume_ml,omitempty" db:"volume_ml"`
	PackType     string   `json:"pack_type" db:"pack_type"`
	UnitsPerCase *int     `json:"units_per_case,omitempty" db:"units_per_case"`
	ABVPercent   *float64 `json:"abv_percent,omitempty" db:"abv_percent"`

	SourceType string    `json:"source_type" db:"source_type"`
	SourceID   string    `json:"source_id" db:"source_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// HasHardIdentifier reports whether the line carries a globally unique
// identifier (GTIN or LWIN). Producer SKUs are only unique per issuer.
func (l *Line) HasHardIdentifier() bool {
	return (l.GTIN != nil && *l.GTIN != "") || (l.LWIN != nil && *l.LWIN != "")
}

// IsNonVintage reports whether the line declares no vintage.
func (l *Line) IsNonVintage() bool {
	return l.Vintage == nil
}

// CreateLineRequest is the request for submitting a single line for matching.
type CreateLineRequest struct {
	ImportID   string `json:"import_id" validate:"required"`
	LineNumber int    `json:"line_number" validate:"gte=0"`

	GTIN        *string `json:"gtin,omitempty"`
	LWIN        *string `json:"lwin,omitempty"`
	ProducerSKU *string `json:"producer_sku,omitempty"`
	IssuerID    *string `json:"issuer_id,omitempty"`

	Name         string   `json:"name" validate:"required"`
	Producer     string   `json:"producer"`
	Vintage      *int     `json:"vintage,omitempty" validate:"omitempty,gte=1800"`
	Country      string   `json:"country"`
	Region       string   `json:"region"`
	VolumeML     *int     `json:"volume_ml,omitempty" validate:"omitempty,gt=0"`
	PackType     string   `json:"pack_type"`
	UnitsPerCase *int     `json:"units_per_case,omitempty" validate:"omitempty,gt=0"`
	ABVPercent   *float64 `json:"abv_percent,omitempty" validate:"omitempty,gte=0,lte=100"`

	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// LineListResponse is the response for listing lines.
type LineListResponse struct {
	Items      []Line `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}
