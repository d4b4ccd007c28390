package services

import (
	"context"
	"errors"
	"strings"

	"leadscout/identity"
	"leadscout/models"
	"leadscout/storage"
)

var ErrNoAddress = errors.New("raw lead has no address")

// LeadService turns raw scrapes into normalized leads and persists them.
// The estimate score it assigns at ingestion is a coarse triage number; the
// scorer recomputes the real one on its own schedule.
type LeadService struct {
	store storage.Store
}

func NewLeadService(store storage.Store) *LeadService {
	return &LeadService{store: store}
}

// SaveRaw converts and saves a scrape batch. Invalid records are counted as
// errors, never aborting the batch.
func (s *LeadService) SaveRaw(ctx context.Context, raws []models.RawLead) (*storage.SaveStats, error) {
	var leads []*models.Lead
	invalid := 0

	for i := range raws {
		lead, err := FromRaw(&raws[i])
		if err != nil {
			invalid++
			continue
		}
		leads = append(leads, lead)
	}

	stats, err := s.store.SaveLeads(ctx, leads)
	if err != nil {
		return nil, err
	}
	stats.Errors += invalid
	return stats, nil
}

// FromRaw normalizes a raw scrape into a lead: canonical address and owner
// name, keyword and records-feed signals mapped onto the distress flags, and
// an estimate score. Fails only when the address is missing.
func FromRaw(raw *models.RawLead) (*models.Lead, error) {
	if strings.TrimSpace(raw.Address) == "" {
		return nil, ErrNoAddress
	}

	lead := &models.Lead{
		Address:      identity.NormalizeAddress(raw.Address),
		City:         strings.TrimSpace(raw.City),
		State:        strings.ToUpper(strings.TrimSpace(raw.State)),
		Zip:          strings.TrimSpace(raw.Zip),
		Price:        raw.Price,
		Bedrooms:     raw.Bedrooms,
		Bathrooms:    raw.Bathrooms,
		SquareFeet:   raw.SquareFeet,
		LotSize:      raw.LotSize,
		YearBuilt:    raw.YearBuilt,
		PropertyType: raw.PropertyType,
		ListingDate:  raw.ListingDate,
		Source:       raw.Source,
		SourceURL:    raw.SourceURL,
		Status:       raw.Status,

		DaysOnMarket:         raw.DaysOnMarket,
		PriceReduced:         raw.PriceReduced,
		PriceReductionAmount: raw.PriceReductionAmount,
		DistressKeywords:     raw.DistressKeywords,
	}
	if lead.PropertyType == "" {
		lead.PropertyType = models.PropertyTypeUnknown
	}

	applyKeywordFlags(lead, raw.DistressKeywords)
	applyDistressType(lead, raw.DistressType)
	lead.DistressScore = estimateScore(lead)

	if raw.OwnerName != "" || raw.OwnerPhone != "" || raw.OwnerEmail != "" || raw.OwnerMailingAddress != "" {
		lead.Owner = &models.Owner{
			Name:           identity.NormalizeOwnerName(raw.OwnerName),
			Phone:          strings.TrimSpace(raw.OwnerPhone),
			Email:          strings.TrimSpace(raw.OwnerEmail),
			MailingAddress: strings.TrimSpace(raw.OwnerMailingAddress),
		}
	}

	return lead, nil
}

// applyKeywordFlags promotes the strongest keyword matches to hard flags.
// Soft keywords ("fixer", "motivated") stay keywords only.
func applyKeywordFlags(lead *models.Lead, keywords []string) {
	for _, kw := range keywords {
		switch strings.ToLower(kw) {
		case "foreclosure", "bank owned", "reo":
			lead.IsForeclosure = true
		case "probate", "estate sale":
			lead.IsProbate = true
		}
	}
}

// applyDistressType maps a public-records feed signal onto its flag.
func applyDistressType(lead *models.Lead, distressType string) {
	switch distressType {
	case "foreclosure":
		lead.IsForeclosure = true
	case "probate":
		lead.IsProbate = true
	case "tax_delinquent":
		lead.TaxDelinquent = true
	case "code_violations":
		lead.CodeViolations = true
	case "vacant":
		lead.IsVacant = true
	case "absentee_owner":
		lead.AbsenteeOwner = true
	}
}

// estimateScore is the cheap ingestion-time triage number. The canonical
// score comes from the scorer and overwrites this.
func estimateScore(lead *models.Lead) int {
	score := len(lead.DistressKeywords) * 10
	if lead.DaysOnMarket != nil && *lead.DaysOnMarket > 60 {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	return score
}
