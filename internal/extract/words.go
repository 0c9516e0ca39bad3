package extract

import (
	"fmt"
	"strings"
)

// Number words accepted by the amount-in-words fallback. Indian-scale
// multipliers (lakh, crore) appear alongside the western ones because both
// occur on domestic invoices.
var unitWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var scaleWords = map[string]int64{
	"hundred":  100,
	"thousand": 1_000,
	"lakh":     100_000,
	"lakhs":    100_000,
	"lac":      100_000,
	"lacs":     100_000,
	"million":  1_000_000,
	"crore":    10_000_000,
	"crores":   10_000_000,
	"billion":  1_000_000_000,
}

// wordsToNumber converts a spelled-out amount ("two lakh fifty thousand",
// "one thousand two hundred thirty four") to its numeric value. Hyphenated
// compounds like "twenty-five" are split. Unknown words fail the whole
// conversion so garbage captured around the phrase does not produce a
// bogus amount.
func wordsToNumber(phrase string) (int64, error) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	phrase = strings.ReplaceAll(phrase, "-", " ")
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty phrase")
	}

	var total, current int64
	seen := false
	for _, w := range fields {
		if v, ok := unitWords[w]; ok {
			current += v
			seen = true
			continue
		}
		if scale, ok := scaleWords[w]; ok {
			if current == 0 {
				current = 1
			}
			if scale == 100 {
				current *= scale
			} else {
				total += current * scale
				current = 0
			}
			seen = true
			continue
		}
		return 0, fmt.Errorf("unknown number word %q", w)
	}
	if !seen {
		return 0, fmt.Errorf("no number words in %q", phrase)
	}
	return total + current, nil
}
