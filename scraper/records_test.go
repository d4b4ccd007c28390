package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"leadscout/config"
	"leadscout/fetch"
	"leadscout/models"
)

func TestParseTableSource(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "records_table.html"))
	if err != nil {
		t.Fatal(err)
	}

	src := config.RecordSource{
		URL:          "https://county.example/probate",
		Format:       "html_table",
		AddressCol:   "Property Address",
		OwnerCol:     "Owner Name",
		DistressType: "probate",
	}

	leads, err := parseTableSource(body, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Three data rows, one with no address.
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}

	first := leads[0]
	if first.Address != "55 Maple Street" {
		t.Errorf("wrong address: %q", first.Address)
	}
	if first.OwnerName != "ESTATE OF JOHN SMITH" {
		t.Errorf("wrong owner: %q", first.OwnerName)
	}
	if first.DistressType != "probate" {
		t.Errorf("wrong distress type: %q", first.DistressType)
	}
	if first.Source != models.SourcePublicRecords {
		t.Errorf("wrong source: %q", first.Source)
	}
	if first.SourceURL != "https://county.example/probate#55-maple-street" {
		t.Errorf("unstable source url: %q", first.SourceURL)
	}
}

func TestParseTableSourceMaxRows(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "records_table.html"))
	if err != nil {
		t.Fatal(err)
	}

	src := config.RecordSource{
		URL:          "https://county.example/probate",
		AddressCol:   "Property Address",
		DistressType: "probate",
		MaxRows:      1,
	}
	leads, err := parseTableSource(body, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
}

func TestParseCSVSource(t *testing.T) {
	body, err := os.ReadFile(filepath.Join("testdata", "tax_delinquent.csv"))
	if err != nil {
		t.Fatal(err)
	}

	src := config.RecordSource{
		URL:          "https://county.example/tax.csv",
		Format:       "csv",
		AddressCol:   "Situs Address",
		OwnerCol:     "Owner of Record",
		DistressType: "tax_delinquent",
	}

	leads, err := parseCSVSource(body, src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Four data rows, one with an empty address.
	if len(leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(leads))
	}
	if leads[0].Address != "301 Adams St" {
		t.Errorf("wrong address: %q", leads[0].Address)
	}
	if leads[0].OwnerName != "ACME HOLDINGS LLC" {
		t.Errorf("wrong owner: %q", leads[0].OwnerName)
	}
	if leads[0].DistressType != "tax_delinquent" {
		t.Errorf("wrong distress type: %q", leads[0].DistressType)
	}
}

func TestParseCSVSourceMissingColumn(t *testing.T) {
	body := []byte("A,B\n1,2\n")
	src := config.RecordSource{AddressCol: "Situs Address"}
	if _, err := parseCSVSource(body, src); err == nil {
		t.Fatal("expected error for missing address column")
	}
}

func TestRecordsScrape(t *testing.T) {
	table, err := os.ReadFile(filepath.Join("testdata", "records_table.html"))
	if err != nil {
		t.Fatal(err)
	}
	csvBody, err := os.ReadFile(filepath.Join("testdata", "tax_delinquent.csv"))
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/probate":
			w.Write(table)
		case "/tax.csv":
			w.Write(csvBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	h := NewRecordsHandler(&config.SiteConfig{
		ID: "public_records",
		Sources: []config.RecordSource{
			{URL: srv.URL + "/probate", Format: "html_table", AddressCol: "Property Address", OwnerCol: "Owner Name", DistressType: "probate"},
			{URL: srv.URL + "/tax.csv", Format: "csv", AddressCol: "Situs Address", OwnerCol: "Owner of Record", DistressType: "tax_delinquent"},
			{URL: srv.URL + "/missing", Format: "csv", AddressCol: "Situs Address", DistressType: "vacant"},
		},
	}, fetch.NewClient(fastFetchConfig(), nil))

	leads, err := h.Scrape(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	// One source is dead; the other two still land.
	if len(leads) != 5 {
		t.Fatalf("expected 5 leads, got %d", len(leads))
	}
}
