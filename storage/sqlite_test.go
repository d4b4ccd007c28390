package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"leadscout/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func floatPtr(v float64) *float64 { return &v }

func testLead(addr, url string) *models.Lead {
	return &models.Lead{
		Address:   addr,
		City:      "Springfield",
		State:     "IL",
		Zip:       "62701",
		Source:    models.SourceListings,
		SourceURL: url,
		Status:    "active",
	}
}

func TestSaveLeadsInsertAndUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lead := testLead("123 Main St", "https://example.com/1")
	lead.Price = floatPtr(250000)

	stats, err := store.SaveLeads(ctx, []*models.Lead{lead})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stats.Saved != 1 || stats.Updated != 0 {
		t.Fatalf("expected 1 saved, got %+v", stats)
	}

	// Same source+url again with a new price: must update the row in place.
	again := testLead("123 Main St", "https://example.com/1")
	again.Price = floatPtr(225000)
	again.PriceReduced = true

	stats, err = store.SaveLeads(ctx, []*models.Lead{again})
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if stats.Saved != 0 || stats.Updated != 1 {
		t.Fatalf("expected 1 updated, got %+v", stats)
	}

	leads, err := store.ListLeads(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	if leads[0].Price == nil || *leads[0].Price != 225000 {
		t.Errorf("expected updated price 225000, got %v", leads[0].Price)
	}
	if !leads[0].PriceReduced {
		t.Error("price_reduced flag lost on update")
	}
}

func TestSaveLeadsNullFieldsPreserved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testLead("456 Oak Ave", "https://example.com/2")
	first.Bedrooms = new(int)
	*first.Bedrooms = 3
	first.IsForeclosure = true
	if _, err := store.SaveLeads(ctx, []*models.Lead{first}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Re-scrape with missing bedrooms and no foreclosure signal: neither may
	// be clobbered.
	second := testLead("456 Oak Ave", "https://example.com/2")
	if _, err := store.SaveLeads(ctx, []*models.Lead{second}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err := store.GetLeadBySource(ctx, models.SourceListings, "https://example.com/2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Bedrooms == nil || *got.Bedrooms != 3 {
		t.Errorf("bedrooms clobbered by null re-scrape: %v", got.Bedrooms)
	}
	if !got.IsForeclosure {
		t.Error("foreclosure flag cleared by re-scrape without signal")
	}
}

func TestSaveLeadsSkipsMissingAddress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	leads := []*models.Lead{
		testLead("1 First St", "https://example.com/a"),
		testLead("", "https://example.com/b"),
		testLead("3 Third St", "https://example.com/c"),
	}

	stats, err := store.SaveLeads(ctx, leads)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stats.Saved != 2 {
		t.Errorf("expected 2 saved, got %d", stats.Saved)
	}
	if stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}

	all, _ := store.ListLeads(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
}

func TestSaveLeadsBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var leads []*models.Lead
	for i := 0; i < 27; i++ {
		leads = append(leads, testLead(
			fmt.Sprintf("%d Elm St", i+1),
			fmt.Sprintf("https://example.com/elm/%d", i+1)))
	}

	stats, err := store.SaveLeads(ctx, leads)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if stats.Saved != 27 {
		t.Fatalf("expected 27 saved, got %+v", stats)
	}
}

func TestQueryLeadsFilterAndSort(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	scores := map[string]int{"a": 80, "b": 40, "c": 95}
	for name, score := range scores {
		lead := testLead(name+" Pine St", "https://example.com/pine/"+name)
		lead.DistressScore = score
		if name == "b" {
			lead.Source = models.SourcePublicRecords
		}
		if _, err := store.SaveLeads(ctx, []*models.Lead{lead}); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	got, err := store.QueryLeads(ctx, Filter{MinScore: 50, SortBy: "distress_score", Descending: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 leads over 50, got %d", len(got))
	}
	if got[0].DistressScore != 95 || got[1].DistressScore != 80 {
		t.Errorf("wrong sort order: %d, %d", got[0].DistressScore, got[1].DistressScore)
	}

	bySource, err := store.QueryLeads(ctx, Filter{Source: models.SourcePublicRecords})
	if err != nil {
		t.Fatalf("query by source: %v", err)
	}
	if len(bySource) != 1 || bySource[0].DistressScore != 40 {
		t.Errorf("source filter failed: %+v", bySource)
	}

	limited, err := store.QueryLeads(ctx, Filter{SortBy: "distress_score", Descending: true, Limit: 1})
	if err != nil {
		t.Fatalf("query with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].DistressScore != 95 {
		t.Errorf("limit failed: %+v", limited)
	}
}

func TestOwnerAttachAndMerge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lead := testLead("9 Birch Ln", "https://example.com/9")
	lead.Owner = &models.Owner{Name: "Jane Doe", Phone: "555-0100"}
	if _, err := store.SaveLeads(ctx, []*models.Lead{lead}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetLeadBySource(ctx, models.SourceListings, "https://example.com/9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID == nil {
		t.Fatal("owner not attached")
	}

	// Re-scrape bringing an email: owner row gains it without losing the phone.
	again := testLead("9 Birch Ln", "https://example.com/9")
	again.Owner = &models.Owner{Email: "jane@example.com"}
	if _, err := store.SaveLeads(ctx, []*models.Lead{again}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	owner, err := store.GetOwner(ctx, *got.OwnerID)
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if owner.Phone != "555-0100" || owner.Email != "jane@example.com" {
		t.Errorf("owner merge wrong: %+v", owner)
	}
}

func TestDeleteAndReassignOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keep := testLead("10 Cedar Ct", "https://example.com/10")
	drop := testLead("10 Cedar Ct", "https://example.com/11")
	drop.Owner = &models.Owner{Name: "John Roe"}
	if _, err := store.SaveLeads(ctx, []*models.Lead{keep, drop}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Survivor adopts the duplicate's owner, duplicate is removed; the owner
	// row itself must survive the lead deletion.
	if err := store.UpdateLeadOwner(ctx, keep.ID, drop.OwnerID); err != nil {
		t.Fatalf("reassign owner: %v", err)
	}
	if err := store.DeleteLead(ctx, drop.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	leads, err := store.ListLeads(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	if leads[0].Owner == nil || leads[0].Owner.Name != "John Roe" {
		t.Errorf("survivor missing adopted owner: %+v", leads[0].Owner)
	}
}

func TestUpdateScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lead := testLead("12 Walnut Way", "https://example.com/12")
	if _, err := store.SaveLeads(ctx, []*models.Lead{lead}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.UpdateScore(ctx, lead.ID, 70); err != nil {
		t.Fatalf("update score: %v", err)
	}

	got, _ := store.GetLeadBySource(ctx, models.SourceListings, "https://example.com/12")
	if got.DistressScore != 70 {
		t.Errorf("expected score 70, got %d", got.DistressScore)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.ScrapeRun{
		RunUID:    "test-run-uid",
		SiteID:    "listings",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(ctx, run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.LeadsFound = 5
	run.LeadsSaved = 4
	run.ErrorsCount = 1
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	if err := store.Log(ctx, &id, models.LogLevelInfo, "run finished", "listings"); err != nil {
		t.Fatalf("log: %v", err)
	}
}
