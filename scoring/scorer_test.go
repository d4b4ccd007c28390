package scoring

import (
	"context"
	"path/filepath"
	"testing"

	"leadscout/config"
	"leadscout/models"
	"leadscout/storage"
)

func TestScore(t *testing.T) {
	s := NewScorer(config.DefaultWeights)

	tests := []struct {
		name string
		lead models.Lead
		want int
	}{
		{
			name: "no signals",
			lead: models.Lead{},
			want: 0,
		},
		{
			name: "foreclosure alone saturates",
			lead: models.Lead{IsForeclosure: true},
			want: 100,
		},
		{
			name: "vacant plus price reduced",
			lead: models.Lead{IsVacant: true, PriceReduced: true},
			want: 60,
		},
		{
			name: "probate and vacant clamp at 100",
			lead: models.Lead{IsProbate: true, IsVacant: true},
			want: 100,
		},
		{
			name: "days on market scales linearly",
			lead: models.Lead{DaysOnMarket: intPtr(60)},
			want: 15, // 60/120 of weight 30
		},
		{
			name: "days on market saturates at 120",
			lead: models.Lead{DaysOnMarket: intPtr(400)},
			want: 30,
		},
		{
			name: "absentee owner with code violations",
			lead: models.Lead{AbsenteeOwner: true, CodeViolations: true},
			want: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(&tt.lead); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreIgnoresStoredScore(t *testing.T) {
	s := NewScorer(config.DefaultWeights)

	lead := models.Lead{IsVacant: true, DistressScore: 99}
	if got := s.Score(&lead); got != 40 {
		t.Errorf("Score() = %d, want 40; stored score must not leak in", got)
	}
}

func TestScoreCustomWeights(t *testing.T) {
	s := NewScorer(map[string]int{"vacant": 10, "price_reduced": 5})
	lead := models.Lead{IsVacant: true, PriceReduced: true, IsForeclosure: true}
	// Foreclosure has no weight in this table, so it contributes nothing.
	if got := s.Score(&lead); got != 15 {
		t.Errorf("Score() = %d, want 15", got)
	}
}

func TestRescoreAll(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	vacant := &models.Lead{
		Address: "1 First St", Source: models.SourceListings, SourceURL: "https://x/1",
		IsVacant: true, DistressScore: 10, // stale estimate
	}
	settled := &models.Lead{
		Address: "2 Second St", Source: models.SourceListings, SourceURL: "https://x/2",
		PriceReduced: true, DistressScore: 20, // already canonical
	}
	if _, err := store.SaveLeads(ctx, []*models.Lead{vacant, settled}); err != nil {
		t.Fatalf("save: %v", err)
	}

	s := NewScorer(config.DefaultWeights)
	updated, err := s.RescoreAll(ctx, store)
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	got, _ := store.GetLeadBySource(ctx, models.SourceListings, "https://x/1")
	if got.DistressScore != 40 {
		t.Errorf("vacant lead score = %d, want 40", got.DistressScore)
	}

	// Second pass changes nothing.
	updated, err = s.RescoreAll(ctx, store)
	if err != nil {
		t.Fatalf("second rescore: %v", err)
	}
	if updated != 0 {
		t.Errorf("second pass updated %d, want 0", updated)
	}
}

func intPtr(v int) *int { return &v }
