package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"leadscout/models"
	"leadscout/storage"
)

func TestFromRawNormalizes(t *testing.T) {
	raw := models.RawLead{
		Address:   "123  main STREET",
		City:      " Springfield ",
		State:     "il",
		Source:    models.SourceListings,
		SourceURL: "https://listings.example/prop/1",
		OwnerName: "john smith",
	}

	lead, err := FromRaw(&raw)
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if lead.Address != "123 Main St" {
		t.Errorf("address not canonical: %q", lead.Address)
	}
	if lead.State != "IL" {
		t.Errorf("state not uppercased: %q", lead.State)
	}
	if lead.PropertyType != models.PropertyTypeUnknown {
		t.Errorf("missing type should default to unknown: %q", lead.PropertyType)
	}
	if lead.Owner == nil || lead.Owner.Name != "John Smith" {
		t.Errorf("owner name not normalized: %+v", lead.Owner)
	}
}

func TestFromRawMissingAddress(t *testing.T) {
	_, err := FromRaw(&models.RawLead{Source: models.SourceListings, SourceURL: "x"})
	if !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}

func TestFromRawKeywordFlags(t *testing.T) {
	raw := models.RawLead{
		Address:          "1 Elm St",
		Source:           models.SourceListings,
		SourceURL:        "https://listings.example/prop/2",
		DistressKeywords: []string{"foreclosure", "fixer", "estate sale"},
	}

	lead, err := FromRaw(&raw)
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if !lead.IsForeclosure {
		t.Error("foreclosure keyword did not set flag")
	}
	if !lead.IsProbate {
		t.Error("estate sale keyword did not set probate flag")
	}
	if lead.IsVacant || lead.TaxDelinquent {
		t.Error("unrelated flags set")
	}
	// Three keywords at 10 each.
	if lead.DistressScore != 30 {
		t.Errorf("estimate score = %d, want 30", lead.DistressScore)
	}
}

func TestFromRawDistressType(t *testing.T) {
	raw := models.RawLead{
		Address:      "55 Maple Street",
		Source:       models.SourcePublicRecords,
		SourceURL:    "https://county.example/probate#55-maple-street",
		DistressType: "tax_delinquent",
	}
	lead, err := FromRaw(&raw)
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if !lead.TaxDelinquent {
		t.Error("records distress type not mapped to flag")
	}
}

func TestFromRawStaleListingBoost(t *testing.T) {
	dom := 90
	raw := models.RawLead{
		Address:          "2 Oak Ave",
		Source:           models.SourceListings,
		SourceURL:        "https://listings.example/prop/3",
		DaysOnMarket:     &dom,
		DistressKeywords: []string{"motivated"},
	}
	lead, err := FromRaw(&raw)
	if err != nil {
		t.Fatalf("from raw: %v", err)
	}
	if lead.DistressScore != 30 {
		t.Errorf("estimate score = %d, want 30 (10 keyword + 20 stale)", lead.DistressScore)
	}
}

func TestSaveRawCountsInvalid(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	svc := NewLeadService(store)
	raws := []models.RawLead{
		{Address: "1 First St", Source: models.SourceListings, SourceURL: "https://x/1"},
		{Source: models.SourceListings, SourceURL: "https://x/2"}, // no address
		{Address: "3 Third St", Source: models.SourceListings, SourceURL: "https://x/3"},
	}

	stats, err := svc.SaveRaw(context.Background(), raws)
	if err != nil {
		t.Fatalf("save raw: %v", err)
	}
	if stats.Saved != 2 {
		t.Errorf("saved = %d, want 2", stats.Saved)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", stats.Errors)
	}
}
