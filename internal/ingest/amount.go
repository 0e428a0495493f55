package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Tender values show up as "R 1 200 000", "R1,200,000.00" or "ZAR 500000",
// usually on a line mentioning the estimated or tender value.

var (
	valueLineRe  = regexp.MustCompile(`(?i)\b(estimated|tender|contract|project)?\s*value\b`)
	randAmountRe = regexp.MustCompile(`(?i)\b(?:R|ZAR)\s?([\d][\d\s,]*(?:\.\d{1,2})?)`)
)

// ExtractTenderValue returns the largest rand amount found on a
// value-bearing line of text, with its currency code. Nil when the text
// names no amount.
func ExtractTenderValue(text string) (*float64, string) {
	var best float64
	for _, line := range strings.Split(text, "\n") {
		if !valueLineRe.MatchString(line) {
			continue
		}
		for _, m := range randAmountRe.FindAllStringSubmatch(line, -1) {
			clean := strings.ReplaceAll(m[1], ",", "")
			clean = strings.Join(strings.Fields(clean), "")
			if val, err := strconv.ParseFloat(clean, 64); err == nil && val > best {
				best = val
			}
		}
	}
	if best == 0 {
		return nil, ""
	}
	return &best, "ZAR"
}
