package models

import "time"

// RawLead is the semi-structured record a site scraper yields before
// normalization. Extraction is best-effort: any field except Source and
// SourceURL may be missing, and a partial record is still valid.
type RawLead struct {
	Address      string
	City         string
	State        string
	Zip          string
	Price        *float64
	Bedrooms     *int
	Bathrooms    *float64
	SquareFeet   *int
	LotSize      *float64
	YearBuilt    *int
	PropertyType string
	Description  string
	Status       string
	ListingDate  time.Time

	Source    string
	SourceURL string

	DaysOnMarket         *int
	PriceReduced         bool
	PriceReductionAmount *float64

	// Keywords from the configured distress list that matched the
	// description text. Input to scoring, not the score itself.
	DistressKeywords []string

	// DistressType is set by public-records feeds (probate, foreclosure,
	// tax_delinquent, code_violations, vacant) and mapped onto the
	// corresponding lead flag at ingestion.
	DistressType string

	OwnerName           string
	OwnerPhone          string
	OwnerEmail          string
	OwnerMailingAddress string
}
