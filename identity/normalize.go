package identity

import (
	"regexp"
	"strings"
	"unicode"
)

// Street suffix vocabulary. Values are already in canonical (title-cased)
// form after the final capitalization pass, which makes normalization a
// fixpoint: normalizing an already-normalized address changes nothing.
var streetSuffixes = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"road":      "rd",
	"drive":     "dr",
	"lane":      "ln",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"terrace":   "ter",
	"parkway":   "pkwy",
	"highway":   "hwy",
	"apartment": "apt",
	"suite":     "ste",
}

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeAddress canonicalizes a raw address for comparison and storage:
// collapse whitespace, lowercase, abbreviate street suffixes, then title-case
// each token. Empty input yields empty output. Deterministic and idempotent;
// ingestion and dedupe must both go through this exact function so their keys
// stay comparable.
func NormalizeAddress(raw string) string {
	if raw == "" {
		return ""
	}
	addr := strings.ToLower(strings.TrimSpace(raw))
	addr = multiSpace.ReplaceAllString(addr, " ")

	tokens := strings.Split(addr, " ")
	for i, tok := range tokens {
		word, trailing := splitTrailingPunct(tok)
		if abbr, ok := streetSuffixes[word]; ok {
			word = abbr
		}
		tokens[i] = capitalize(word) + trailing
	}
	return strings.Join(tokens, " ")
}

// NormalizeOwnerName canonicalizes an owner name: collapse whitespace and
// title-case each part. Empty input yields empty output.
func NormalizeOwnerName(raw string) string {
	if raw == "" {
		return ""
	}
	name := multiSpace.ReplaceAllString(strings.TrimSpace(raw), " ")
	parts := strings.Split(name, " ")
	for i, p := range parts {
		parts[i] = capitalize(strings.ToLower(p))
	}
	return strings.Join(parts, " ")
}

// WeakKey is the cross-source duplicate-detection key: canonical address plus
// canonical owner name. Owner may be absent; two leads with no owner still
// collide on address alone.
func WeakKey(address, ownerName string) string {
	return NormalizeAddress(address) + "|" + NormalizeOwnerName(ownerName)
}

func splitTrailingPunct(tok string) (string, string) {
	end := len(tok)
	for end > 0 && (tok[end-1] == ',' || tok[end-1] == '.' || tok[end-1] == ';') {
		end--
	}
	return tok[:end], tok[end:]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
