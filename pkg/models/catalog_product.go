package models

import (
	"time"
)

// CatalogProduct is a canonical product line in the internal catalog.
type CatalogProduct struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	GTIN        *string `json:"gtin,omitempty" db:"gtin"`
	LWIN        *string `json:"lwin,omitempty" db:"lwin"`
	ProducerSKU *string `json:"producer_sku,omitempty" db:"producer_sku"`
	IssuerID    *string `json:"issuer_id,omitempty" db:"issuer_id"`

	Name         string   `json:"name" db:"name"`
	Producer     string   `json:"producer" db:"producer"`
	Vintage      *int     `json:"vintage,omitempty" db:"vintage"` // nil means non-vintage
	Country      string   `json:"country" db:"country"`
	Region       string   `json:"region" db:"region"`
	VolumeML     *int     `json:"volume_ml,omitempty" db:"volume_ml"`
	PackType     string   `json:"pack_type" db:"pack_type"`
	UnitsPerCase *int     `json:"units_per_case,omitempty" db:"units_per_case"`
	ABVPercent   *float64 `json:"abv_percent,omitempty" db:"abv_percent"`

	// AutoCreated marks products minted by the matcher rather than curated.
	AutoCreated bool      `json:"auto_created" db:"auto_created"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// IsVintageSpecific reports whether the product is pinned to a vintage year.
func (p *CatalogProduct) IsVintageSpecific() bool {
	return p.Vintage != nil
}

// CreateCatalogProductRequest is the request for creating a catalog product.
type CreateCatalogProductRequest struct {
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

	AutoCreated bool `json:"auto_created"`
}
