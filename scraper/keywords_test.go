package scraper

import (
	"reflect"
	"testing"

	"leadscout/config"
	"leadscout/models"
)

func TestMatchKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "case insensitive",
			text: "FORECLOSURE auction, property sold AS-IS",
			want: []string{"foreclosure", "as-is"},
		},
		{
			name: "duplicate mentions count once",
			text: "fixer upper, a real fixer",
			want: []string{"fixer"},
		},
		{
			name: "no matches",
			text: "beautiful move-in ready home",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "multi-word keyword",
			text: "This is a bank owned property, needs work throughout",
			want: []string{"bank owned", "needs work"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchKeywords(tt.text, config.DefaultKeywords)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MatchKeywords(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func rawWithDescription(desc string) models.RawLead {
	return models.RawLead{Description: desc}
}

func TestMineDescription(t *testing.T) {
	lead := rawWithDescription("Charming 3 bed 2.5 bath home, 1,800 sqft of living space")
	mineDescription(lead.Description, &lead)

	if lead.Bedrooms == nil || *lead.Bedrooms != 3 {
		t.Errorf("bedrooms = %v", lead.Bedrooms)
	}
	if lead.Bathrooms == nil || *lead.Bathrooms != 2.5 {
		t.Errorf("bathrooms = %v", lead.Bathrooms)
	}
	if lead.SquareFeet == nil || *lead.SquareFeet != 1800 {
		t.Errorf("square feet = %v", lead.SquareFeet)
	}

	// Already-set fields are not clobbered by the miner.
	two := 2
	lead2 := rawWithDescription("5 bedroom estate")
	lead2.Bedrooms = &two
	mineDescription(lead2.Description, &lead2)
	if *lead2.Bedrooms != 2 {
		t.Errorf("miner overwrote structured bedrooms: %d", *lead2.Bedrooms)
	}
}
