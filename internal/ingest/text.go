package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// SquashWhitespace collapses runs of whitespace to single spaces and trims
// the ends. The store maps the resulting empty string to NULL.
func SquashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanHTMLish decodes entity-encoded text (&nbsp; &amp; &lt; &gt;) and
// strips any leftover markup from HTML-derived paragraphs. Unsafe markup
// is sanitized away first so script bodies never leak into descriptions.
func CleanHTMLish(s string) string {
	s = sanitizePolicy.Sanitize(s)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.ReplaceAll(s, " ", " ")
	}
	return strings.ReplaceAll(doc.Text(), " ", " ")
}

var sanitizePolicy = bluemonday.UGCPolicy()

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	textualDateRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?,?\s+(\d{4})(?:\s*@?\s*(\d{1,2})(?:[:hH.](\d{2}))?\s*(AM|PM)?)?`)
	numericDateRe = regexp.MustCompile(`\b(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})(?:[ T](\d{1,2}):(\d{2}))?`)
	timeRangeRe   = regexp.MustCompile(`\b(\d{1,2})[:.hH](\d{2})\s*(?:-|–)\s*(\d{1,2})[:.hH](\d{2})\b`)
	emailRe       = regexp.MustCompile(`(?i)\b[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}\b`)
	urlRe         = regexp.MustCompile(`https?://[^\s"'<>]+`)
	saPhoneRe     = regexp.MustCompile(`(?:\+27[\s\-]?|0)\d{2}[\s\-]?\d{3}[\s\-]?\d{4}`)
	venueRe       = regexp.MustCompile(`(?i)\b(boardroom|building|house|hall|room|centre|center|street|road|offices?\s+of)\b`)
	venueAtRe     = regexp.MustCompile(`\bat\s+(.{5,})$`)
)

// ExtractTextualDateTime matches "D Month YYYY [HH[:MM] [AM|PM]]" inside
// free text. A missing time means midnight local time.
func ExtractTextualDateTime(s string, loc *time.Location) *time.Time {
	m := textualDateRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	day, _ := strconv.Atoi(m[1])
	month, ok := monthNumbers[strings.ToLower(m[2])[:3]]
	if !ok {
		return nil
	}
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 {
		return nil
	}

	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		if m[5] != "" {
			minute, _ = strconv.Atoi(m[5])
		}
		switch strings.ToUpper(m[6]) {
		case "PM":
			if hour < 12 {
				hour += 12
			}
		case "AM":
			if hour == 12 {
				hour = 0
			}
		}
	}
	if hour > 23 || minute > 59 {
		return nil
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	return &t
}

// ExtractNumericDateTime matches "YYYY[/-.]MM[/-.]DD[ T HH:MM]".
func ExtractNumericDateTime(s string, loc *time.Location) *time.Time {
	m := numericDateRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}

	hour, minute := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if hour > 23 || minute > 59 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	return &t
}

// TimeOfDay is a wall-clock time inside a range such as "13:00-14:00".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return strconv.Itoa(t.Hour/10) + strconv.Itoa(t.Hour%10) + ":" +
		strconv.Itoa(t.Minute/10) + strconv.Itoa(t.Minute%10)
}

// TimeRange is a start/end pair extracted from one line. When a closing
// line carries both a date and a range, the deadline is the range end on
// that date; a briefing starts at the range start.
type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ExtractTimeRange matches "HH:MM - HH:MM" with ':', '.', 'h' or 'H' as
// the hour separator and either an ASCII hyphen or an en-dash between.
func ExtractTimeRange(s string) *TimeRange {
	m := timeRangeRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	sh, _ := strconv.Atoi(m[1])
	sm, _ := strconv.Atoi(m[2])
	eh, _ := strconv.Atoi(m[3])
	em, _ := strconv.Atoi(m[4])
	if sh > 23 || eh > 23 || sm > 59 || em > 59 {
		return nil
	}

	return &TimeRange{
		Start: TimeOfDay{Hour: sh, Minute: sm},
		End:   TimeOfDay{Hour: eh, Minute: em},
	}
}

// ExtractEmails returns the de-duplicated, lowercased email addresses in s,
// in order of first appearance.
func ExtractEmails(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range emailRe.FindAllString(s, -1) {
		email := strings.ToLower(m)
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

// ExtractURLs returns the de-duplicated http(s) URLs in s, with trailing
// punctuation trimmed.
func ExtractURLs(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range urlRe.FindAllString(s, -1) {
		u := strings.TrimRight(m, ".,;:)]")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ExtractPhone returns the first South-African-style phone number in s.
func ExtractPhone(s string) string {
	return SquashWhitespace(saPhoneRe.FindString(s))
}

// GuessVenueFromLine returns the line verbatim when it names a venue
// (boardroom, building, street, ...), otherwise the text after a lowercase
// "at " when that text is at least five characters, else empty.
func GuessVenueFromLine(s string) string {
	line := SquashWhitespace(s)
	if line == "" {
		return ""
	}
	if venueRe.MatchString(line) {
		return line
	}
	if m := venueAtRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
