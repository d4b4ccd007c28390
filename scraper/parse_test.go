package scraper

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"$249,900", 249900, true},
		{"Reduced from $1,150,000!", 1150000, true},
		{"249900", 249900, true},
		{"Call for price", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := parsePrice(tt.text)
		if tt.ok {
			if got == nil || *got != tt.want {
				t.Errorf("parsePrice(%q) = %v, want %v", tt.text, got, tt.want)
			}
		} else if got != nil {
			t.Errorf("parsePrice(%q) = %v, want nil", tt.text, *got)
		}
	}
}

func TestParseIntField(t *testing.T) {
	if got := parseIntField("87 days on market"); got == nil || *got != 87 {
		t.Errorf("parseIntField = %v", got)
	}
	if got := parseIntField("1,450 sqft"); got == nil || *got != 1450 {
		t.Errorf("parseIntField = %v", got)
	}
	if got := parseIntField("none"); got != nil {
		t.Errorf("parseIntField = %v, want nil", *got)
	}
}

func TestNormalizePropertyType(t *testing.T) {
	tests := map[string]string{
		"Single Family Home":  "single_family",
		"Detached house":      "single_family",
		"Duplex":              "multi_family",
		"Row / Townhouse":     "townhouse",
		"Condo/Apartment":     "condo",
		"Manufactured Home":   "mobile_home",
		"Vacant Lot":          "land",
		"Commercial Building": "unknown",
		"":                    "unknown",
	}
	for label, want := range tests {
		if got := normalizePropertyType(label); got != want {
			t.Errorf("normalizePropertyType(%q) = %q, want %q", label, got, want)
		}
	}
}
