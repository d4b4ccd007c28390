package scraper

import "strings"

// MatchKeywords returns the configured distress keywords found in text,
// case-insensitively, preserving keyword order. Duplicated mentions count
// once.
func MatchKeywords(text string, keywords []string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
