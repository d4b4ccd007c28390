package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	numberRe  = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	integerRe = regexp.MustCompile(`\d[\d,]*`)
)

// firstText walks the selector chain and returns the first non-empty match.
// Sites shuffle their markup often enough that every extraction goes through
// a fallback chain instead of a single selector.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(s *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := s.Find(sel).First().Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// parsePrice pulls a dollar amount out of text like "$249,900" or
// "Reduced from $300,000!". Returns nil when no number is present.
func parsePrice(text string) *float64 {
	match := numberRe.FindString(text)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntField(text string) *int {
	match := integerRe.FindString(text)
	if match == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

func parseFloatField(text string) *float64 {
	match := numberRe.FindString(text)
	if match == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

// normalizePropertyType maps free-form site labels onto the canonical
// property types. Unrecognized labels come back as "unknown".
func normalizePropertyType(label string) string {
	switch {
	case containsAny(label, "single family", "single-family", "house", "detached"):
		return "single_family"
	case containsAny(label, "multi family", "multi-family", "duplex", "triplex"):
		return "multi_family"
	case containsAny(label, "townhouse", "townhome", "row"):
		return "townhouse"
	case containsAny(label, "condo", "apartment"):
		return "condo"
	case containsAny(label, "mobile", "manufactured"):
		return "mobile_home"
	case containsAny(label, "land", "lot", "acreage"):
		return "land"
	default:
		return "unknown"
	}
}

func containsAny(text string, needles ...string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
