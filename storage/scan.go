package storage

import (
	"database/sql"
	"encoding/json"

	"leadscout/models"
)

// Column list shared by every lead SELECT; keep in sync with scanLead and
// leadArgs.
const leadCols = `id, address, city, state, zip, price, bedrooms, bathrooms, square_feet,
	lot_size, year_built, property_type, listing_date, last_updated, source, source_url,
	status, days_on_market, price_reduced, price_reduction_amount, is_foreclosure,
	is_probate, is_vacant, tax_delinquent, code_violations, absentee_owner,
	distress_keywords, distress_score, owner_id`

// rowScanner is satisfied by *sql.Row, *sql.Rows, and pgx rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var lead models.Lead
	var keywords sql.NullString

	err := row.Scan(
		&lead.ID, &lead.Address, &lead.City, &lead.State, &lead.Zip,
		&lead.Price, &lead.Bedrooms, &lead.Bathrooms, &lead.SquareFeet,
		&lead.LotSize, &lead.YearBuilt, &lead.PropertyType,
		&lead.ListingDate, &lead.LastUpdated, &lead.Source, &lead.SourceURL,
		&lead.Status, &lead.DaysOnMarket, &lead.PriceReduced, &lead.PriceReductionAmount,
		&lead.IsForeclosure, &lead.IsProbate, &lead.IsVacant, &lead.TaxDelinquent,
		&lead.CodeViolations, &lead.AbsenteeOwner,
		&keywords, &lead.DistressScore, &lead.OwnerID,
	)
	if err != nil {
		return nil, err
	}

	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &lead.DistressKeywords); err != nil {
			return nil, err
		}
	}
	return &lead, nil
}

// leadArgs returns the insert/update bind values for every column except id,
// in leadCols order.
func leadArgs(lead *models.Lead) []any {
	var keywords any
	if len(lead.DistressKeywords) > 0 {
		if b, err := json.Marshal(lead.DistressKeywords); err == nil {
			keywords = string(b)
		}
	}

	return []any{
		lead.Address, lead.City, lead.State, lead.Zip,
		lead.Price, lead.Bedrooms, lead.Bathrooms, lead.SquareFeet,
		lead.LotSize, lead.YearBuilt, lead.PropertyType,
		lead.ListingDate, lead.LastUpdated, lead.Source, lead.SourceURL,
		lead.Status, lead.DaysOnMarket, lead.PriceReduced, lead.PriceReductionAmount,
		lead.IsForeclosure, lead.IsProbate, lead.IsVacant, lead.TaxDelinquent,
		lead.CodeViolations, lead.AbsenteeOwner,
		keywords, lead.DistressScore, lead.OwnerID,
	}
}

func scanOwner(row rowScanner) (*models.Owner, error) {
	var owner models.Owner
	err := row.Scan(
		&owner.ID, &owner.Name, &owner.Phone, &owner.Email,
		&owner.MailingAddress, &owner.ContactAttempts, &owner.LastContact, &owner.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &owner, nil
}
