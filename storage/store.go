package storage

import (
	"context"
	"time"

	"leadscout/models"
)

// Batch size for lead saves. A commit lands every batchSize upserts; a failed
// commit loses only the open batch.
const batchSize = 10

type SaveStats struct {
	Saved   int
	Updated int
	Errors  int
}

// Filter narrows and orders QueryLeads results. SortBy must be one of the
// sortable lead attributes; unknown values fall back to distress_score.
type Filter struct {
	Source     string
	MinScore   int
	SortBy     string
	Descending bool
	Limit      int
}

// Store is the lead persistence contract shared by the SQLite and Postgres
// backends. Downstream consumers read through QueryLeads only; scoring and
// dedupe state is written exclusively by the maintenance jobs.
type Store interface {
	SaveLeads(ctx context.Context, leads []*models.Lead) (*SaveStats, error)
	GetLeadBySource(ctx context.Context, source, sourceURL string) (*models.Lead, error)
	QueryLeads(ctx context.Context, f Filter) ([]models.Lead, error)
	ListLeads(ctx context.Context) ([]models.Lead, error)
	DeleteLead(ctx context.Context, id int64) error
	UpdateLeadAddress(ctx context.Context, id int64, address string) error
	UpdateLeadOwner(ctx context.Context, id int64, ownerID *int64) error
	UpdateScore(ctx context.Context, id int64, score int) error
	GetOwner(ctx context.Context, id int64) (*models.Owner, error)
	UpdateOwnerName(ctx context.Context, id int64, name string) error

	CreateRun(ctx context.Context, run *models.ScrapeRun) (int64, error)
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	Log(ctx context.Context, runID *int64, level models.LogLevel, message, siteID string) error

	Close() error
}

// sortColumns whitelists QueryLeads sort attributes against their columns.
var sortColumns = map[string]string{
	"distress_score": "distress_score",
	"price":          "price",
	"last_updated":   "last_updated",
	"listing_date":   "listing_date",
	"days_on_market": "days_on_market",
	"address":        "address",
	"city":           "city",
	"zip":            "zip",
	"year_built":     "year_built",
	"square_feet":    "square_feet",
}

func sortColumn(attr string) string {
	if col, ok := sortColumns[attr]; ok {
		return col
	}
	return "distress_score"
}

// mergeLead folds an incoming re-scrape into the stored lead: every non-null
// incoming field overwrites, null fields leave the stored value alone, and
// distress flags accumulate (a scrape that saw no foreclosure notice does not
// clear one a records feed set). Both backends share this so upsert semantics
// cannot drift between them.
func mergeLead(existing, incoming *models.Lead, now time.Time) {
	if incoming.Address != "" {
		existing.Address = incoming.Address
	}
	if incoming.City != "" {
		existing.City = incoming.City
	}
	if incoming.State != "" {
		existing.State = incoming.State
	}
	if incoming.Zip != "" {
		existing.Zip = incoming.Zip
	}
	if incoming.Price != nil {
		existing.Price = incoming.Price
	}
	if incoming.Bedrooms != nil {
		existing.Bedrooms = incoming.Bedrooms
	}
	if incoming.Bathrooms != nil {
		existing.Bathrooms = incoming.Bathrooms
	}
	if incoming.SquareFeet != nil {
		existing.SquareFeet = incoming.SquareFeet
	}
	if incoming.LotSize != nil {
		existing.LotSize = incoming.LotSize
	}
	if incoming.YearBuilt != nil {
		existing.YearBuilt = incoming.YearBuilt
	}
	if incoming.PropertyType != "" && incoming.PropertyType != models.PropertyTypeUnknown {
		existing.PropertyType = incoming.PropertyType
	}
	if !incoming.ListingDate.IsZero() {
		existing.ListingDate = incoming.ListingDate
	}
	if incoming.Status != "" {
		existing.Status = incoming.Status
	}
	if incoming.DaysOnMarket != nil {
		existing.DaysOnMarket = incoming.DaysOnMarket
	}
	if incoming.PriceReductionAmount != nil {
		existing.PriceReductionAmount = incoming.PriceReductionAmount
	}
	if len(incoming.DistressKeywords) > 0 {
		existing.DistressKeywords = incoming.DistressKeywords
	}

	existing.PriceReduced = existing.PriceReduced || incoming.PriceReduced
	existing.IsForeclosure = existing.IsForeclosure || incoming.IsForeclosure
	existing.IsProbate = existing.IsProbate || incoming.IsProbate
	existing.IsVacant = existing.IsVacant || incoming.IsVacant
	existing.TaxDelinquent = existing.TaxDelinquent || incoming.TaxDelinquent
	existing.CodeViolations = existing.CodeViolations || incoming.CodeViolations
	existing.AbsenteeOwner = existing.AbsenteeOwner || incoming.AbsenteeOwner

	existing.LastUpdated = now
}

// mergeOwner folds incoming owner contact fields into the stored owner.
func mergeOwner(existing, incoming *models.Owner) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Phone != "" {
		existing.Phone = incoming.Phone
	}
	if incoming.Email != "" {
		existing.Email = incoming.Email
	}
	if incoming.MailingAddress != "" {
		existing.MailingAddress = incoming.MailingAddress
	}
}
