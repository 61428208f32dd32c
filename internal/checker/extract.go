package checker

import (
	"regexp"
	"strings"
)

// numberPattern matches a North-American-style 10-digit number with optional
// punctuation, or any bare run of 10-15 digits.
var numberPattern = regexp.MustCompile(`[+]?1?[-\s.]?[(]?\d{3}[)]?[-\s.]?\d{3}[-\s.]?\d{4}|\d{10,15}`)

var nonDigits = regexp.MustCompile(`\D`)

// minNormalizedLength keeps at least 11 digits after the "+" sign.
const minNormalizedLength = 12

// Extract scans free text for phone number candidates and returns them
// normalized to a "+"-prefixed digit string, deduplicated in order of first
// occurrence. This is a heuristic filter, not a phone-number validator: it
// accepts some invalid numbers and rejects valid short-form international
// ones.
func Extract(text string) []string {
	matches := numberPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	numbers := make([]string, 0, len(matches))
	for _, match := range matches {
		normalized := Normalize(match)
		if len(normalized) < minNormalizedLength {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		numbers = append(numbers, normalized)
	}
	return numbers
}

// Normalize strips everything but digits and prefixes a country code:
// 10 digits are assumed US/Canada, an 11-digit run starting with 1 keeps its
// country code, anything else is taken as already carrying one.
func Normalize(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	default:
		return "+" + digits
	}
}
