package extract

import (
	"sort"
	"strconv"
	"strings"
)

// Plausible bounds for a numeric invoice total. Anything outside is OCR
// noise (quantities, serial fragments, truncated digits).
const (
	minPlausibleAmount = 0.01
	maxPlausibleAmount = 100_000_000
	minWordAmount      = 100
)

// extractAmount runs the three-stage amount cascade:
//  1. an amount adjacent to a high-confidence keyword wins outright;
//  2. otherwise every currency-shaped token in range is collected,
//     deduplicated, and the maximum kept; OCR noise produces many numeric
//     substrings but the true total is typically the largest plausible
//     value on the page;
//  3. otherwise the amount spelled out near "amount in words" is converted.
//
// Returns the canonical decimal string, or "" when nothing plausible exists.
func extractAmount(text string) string {
	if m := amountPriorityPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmountToken(m[1]); ok {
			return formatAmount(v)
		}
	}

	var candidates []float64
	seen := make(map[float64]struct{})
	for _, p := range amountPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			v, ok := parseAmountToken(m[1])
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			candidates = append(candidates, v)
		}
	}
	if len(candidates) > 0 {
		sort.Float64s(candidates)
		return formatAmount(candidates[len(candidates)-1])
	}

	if m := amountInWordsPattern.FindStringSubmatch(text); m != nil {
		phrase := wordFillerPattern.ReplaceAllString(m[1], "")
		if n, err := wordsToNumber(phrase); err == nil {
			if n >= minWordAmount && n <= maxPlausibleAmount {
				return strconv.FormatInt(n, 10)
			}
		}
	}

	return ""
}

// parseAmountToken cleans a matched token and applies the plausibility
// gates: ten-digit strings starting 6-9 are phone numbers, six-digit
// strings without a decimal point are postal codes.
func parseAmountToken(tok string) (float64, bool) {
	clean := nonNumeric.ReplaceAllString(tok, "")
	if clean == "" || strings.Trim(clean, "0.") == "" {
		return 0, false
	}
	if len(clean) == 10 && clean[0] >= '6' && clean[0] <= '9' {
		return 0, false
	}
	if len(clean) == 6 && !strings.Contains(clean, ".") {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if v < minPlausibleAmount || v > maxPlausibleAmount {
		return 0, false
	}
	return v, true
}

// formatAmount renders a parsed value the way the rest of the pipeline
// stores amounts: a plain decimal string with two fraction digits and no
// grouping.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
