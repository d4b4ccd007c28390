package models

import (
	"time"
)

// Lead sources. The source + source URL pair is the strong identity key:
// re-scraping the same URL updates the existing row instead of duplicating it.
const (
	SourceListings      = "listings"
	SourceMarketplace   = "marketplace"
	SourcePublicRecords = "public_records"
	SourceManual        = "manual"
)

// Property types recognized by the pipeline.
const (
	PropertyTypeSingleFamily = "single_family"
	PropertyTypeMultiFamily  = "multi_family"
	PropertyTypeTownhouse    = "townhouse"
	PropertyTypeCondo        = "condo"
	PropertyTypeMobileHome   = "mobile_home"
	PropertyTypeLand         = "land"
	PropertyTypeUnknown      = "unknown"
)

// Lead is a candidate property scraped from one of the sources.
// Address is stored in canonical form (identity.NormalizeAddress) and is
// never empty once persisted. DistressScore is derived; it is recomputed by
// the scorer and never hand-edited.
type Lead struct {
	ID           int64      `json:"id" db:"id"`
	Address      string     `json:"address" db:"address"`
	City         string     `json:"city" db:"city"`
	State        string     `json:"state" db:"state"`
	Zip          string     `json:"zip" db:"zip"`
	Price        *float64   `json:"price" db:"price"`
	Bedrooms     *int       `json:"bedrooms" db:"bedrooms"`
	Bathrooms    *float64   `json:"bathrooms" db:"bathrooms"`
	SquareFeet   *int       `json:"square_feet" db:"square_feet"`
	LotSize      *float64   `json:"lot_size" db:"lot_size"`
	YearBuilt    *int       `json:"year_built" db:"year_built"`
	PropertyType string     `json:"property_type" db:"property_type"`
	ListingDate  time.Time  `json:"listing_date" db:"listing_date"`
	LastUpdated  time.Time  `json:"last_updated" db:"last_updated"`
	Source       string     `json:"source" db:"source"`
	SourceURL    string     `json:"source_url" db:"source_url"`
	Status       string     `json:"status" db:"status"`

	// Distress signals
	DaysOnMarket         *int     `json:"days_on_market" db:"days_on_market"`
	PriceReduced         bool     `json:"price_reduced" db:"price_reduced"`
	PriceReductionAmount *float64 `json:"price_reduction_amount" db:"price_reduction_amount"`
	IsForeclosure        bool     `json:"is_foreclosure" db:"is_foreclosure"`
	IsProbate            bool     `json:"is_probate" db:"is_probate"`
	IsVacant             bool     `json:"is_vacant" db:"is_vacant"`
	TaxDelinquent        bool     `json:"tax_delinquent" db:"tax_delinquent"`
	CodeViolations       bool     `json:"code_violations" db:"code_violations"`
	AbsenteeOwner        bool     `json:"absentee_owner" db:"absentee_owner"`
	DistressKeywords     []string `json:"distress_keywords" db:"distress_keywords"`
	DistressScore        int      `json:"distress_score" db:"distress_score"`

	OwnerID *int64 `json:"owner_id" db:"owner_id"`
	Owner   *Owner `json:"owner,omitempty" db:"-"`
}

// Owner is the zero-or-one contact attached to a lead. Its lifetime is
// independent of the lead; deleting a lead does not delete its owner.
type Owner struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Phone           string     `json:"phone" db:"phone"`
	Email           string     `json:"email" db:"email"`
	MailingAddress  string     `json:"mailing_address" db:"mailing_address"`
	ContactAttempts int        `json:"contact_attempts" db:"contact_attempts"`
	LastContact     *time.Time `json:"last_contact" db:"last_contact"`
	Notes           string     `json:"notes" db:"notes"`
}
